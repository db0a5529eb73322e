package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/advisr/advisr-backend/internal/app/models"
	"github.com/advisr/advisr-backend/internal/pkg/apperrors"
	"github.com/advisr/advisr-backend/internal/pkg/dberrors"
	"github.com/advisr/advisr-backend/internal/pkg/logger"
)

const (
	studentsRegNoKey = "students_reg_no_key"
	studentsEmailKey = "students_email_key"
)

var studentColumns = []string{
	"id", "name", "reg_no", "email", "current_semester", "hashed_password",
	"semesters", "version", "created_at", "updated_at",
}

// IStudentRepository defines the persistence operations on student records
type IStudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id int64) (*models.Student, error)
	GetByRegNo(ctx context.Context, regNo string) (*models.Student, error)
	GetByRegNoOrEmail(ctx context.Context, username string) (*models.Student, error)
	SaveProgress(ctx context.Context, student *models.Student, expectedVersion int64) error
}

// StudentRepository handles student database operations
type StudentRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(db *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new student and fills in the generated id, version and timestamps
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	semesters, err := encodeSemesters(student.Semesters)
	if err != nil {
		return err
	}

	sql, args, err := r.sb.Insert("students").
		Columns("name", "reg_no", "email", "current_semester", "hashed_password", "semesters").
		Values(student.Name, student.RegNo, student.Email, student.CurrentSemester, student.HashedPassword, semesters).
		Suffix("RETURNING id, version, created_at, updated_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create student SQL")
		return fmt.Errorf("failed to build create student query: %w", err)
	}

	err = r.db.QueryRow(ctx, sql, args...).Scan(&student.ID, &student.Version, &student.CreatedAt, &student.UpdatedAt)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, studentsRegNoKey) {
			logger.Warn().Str("regNo", student.RegNo).Msg("Attempted to create student with duplicate registration number")
			return apperrors.ErrRegNoAlreadyExists
		}
		if dberrors.IsDuplicateConstraintError(err, studentsEmailKey) {
			logger.Warn().Str("email", student.Email).Msg("Attempted to create student with duplicate email")
			return apperrors.ErrEmailAlreadyExists
		}
		logger.Error().Err(err).Str("regNo", student.RegNo).Msg("Error executing create student query")
		return fmt.Errorf("error creating student: %w", err)
	}

	logger.Info().Int64("studentID", student.ID).Str("regNo", student.RegNo).Msg("Student created successfully")
	return nil
}

// GetByID retrieves a student by primary key
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*models.Student, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByRegNo retrieves a student by registration number
func (r *StudentRepository) GetByRegNo(ctx context.Context, regNo string) (*models.Student, error) {
	return r.getOne(ctx, squirrel.Eq{"reg_no": regNo})
}

// GetByRegNoOrEmail retrieves the student whose registration number or email equals
// username, preferring a registration number match
func (r *StudentRepository) GetByRegNoOrEmail(ctx context.Context, username string) (*models.Student, error) {
	return r.getOne(ctx,
		squirrel.Or{squirrel.Eq{"reg_no": username}, squirrel.Eq{"email": username}},
		squirrel.Expr("(reg_no = ?) DESC", username),
	)
}

func (r *StudentRepository) getOne(ctx context.Context, where squirrel.Sqlizer, orderBy ...squirrel.Sqlizer) (*models.Student, error) {
	query := r.sb.Select(studentColumns...).
		From("students").
		Where(where).
		Limit(1)
	for _, o := range orderBy {
		query = query.OrderByClause(o)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get student SQL")
		return nil, fmt.Errorf("failed to build get student query: %w", err)
	}

	student, err := scanStudent(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrStudentNotFound
		}
		logger.Error().Err(err).Msg("Error executing get student query")
		return nil, fmt.Errorf("error retrieving student: %w", err)
	}

	return student, nil
}

// SaveProgress writes the current semester and semester list if the stored version still
// equals expectedVersion. On success student.Version and UpdatedAt hold the new values;
// a mismatch yields apperrors.ErrStudentVersionStale and nothing is written.
func (r *StudentRepository) SaveProgress(ctx context.Context, student *models.Student, expectedVersion int64) error {
	semesters, err := encodeSemesters(student.Semesters)
	if err != nil {
		return err
	}

	sql, args, err := r.sb.Update("students").
		Set("current_semester", student.CurrentSemester).
		Set("semesters", semesters).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": student.ID, "version": expectedVersion}).
		Suffix("RETURNING version, updated_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building save progress SQL")
		return fmt.Errorf("failed to build save progress query: %w", err)
	}

	err = r.db.QueryRow(ctx, sql, args...).Scan(&student.Version, &student.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrStudentVersionStale
		}
		if dberrors.IsSerializationFailure(err) {
			return apperrors.ErrStudentVersionStale
		}
		if dberrors.IsCheckViolation(err) {
			return apperrors.NewValidationError("student record violates a storage constraint", nil)
		}
		logger.Error().Err(err).Int64("studentID", student.ID).Msg("Error executing save progress query")
		return fmt.Errorf("error saving student progress: %w", err)
	}

	return nil
}

func scanStudent(row pgx.Row) (*models.Student, error) {
	var student models.Student
	var semesters []byte
	err := row.Scan(
		&student.ID,
		&student.Name,
		&student.RegNo,
		&student.Email,
		&student.CurrentSemester,
		&student.HashedPassword,
		&semesters,
		&student.Version,
		&student.CreatedAt,
		&student.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(semesters) > 0 {
		if err := json.Unmarshal(semesters, &student.Semesters); err != nil {
			return nil, fmt.Errorf("failed to decode semesters of student %d: %w", student.ID, err)
		}
	}
	if student.Semesters == nil {
		student.Semesters = []models.Semester{}
	}

	return &student, nil
}

func encodeSemesters(semesters []models.Semester) ([]byte, error) {
	if semesters == nil {
		semesters = []models.Semester{}
	}
	data, err := json.Marshal(semesters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode semesters: %w", err)
	}
	return data, nil
}
