package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/advisr/advisr-backend/internal/app/models"
)

// IAdvisorMessageRepository defines storage for advisor chat exchanges
type IAdvisorMessageRepository interface {
	Create(ctx context.Context, message *models.AdvisorMessage) error
	ListByStudent(ctx context.Context, studentID int64, limit int) ([]*models.AdvisorMessage, error)
}

// AdvisorMessageRepository handles database operations for advisor messages
type AdvisorMessageRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewAdvisorMessageRepository creates a new AdvisorMessageRepository
func NewAdvisorMessageRepository(db *pgxpool.Pool) *AdvisorMessageRepository {
	return &AdvisorMessageRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new advisor message
func (r *AdvisorMessageRepository) Create(ctx context.Context, message *models.AdvisorMessage) error {
	query := `
		INSERT INTO advisor_messages (student_id, semester, question, answer, model)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		message.StudentID,
		message.Semester,
		message.Question,
		message.Answer,
		message.Model,
	).Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating advisor message: %w", err)
	}

	return nil
}

// ListByStudent returns the most recent exchanges of a student, newest first
func (r *AdvisorMessageRepository) ListByStudent(ctx context.Context, studentID int64, limit int) ([]*models.AdvisorMessage, error) {
	sql, args, err := r.sb.Select("id", "student_id", "semester", "question", "answer", "model", "created_at").
		From("advisor_messages").
		Where(squirrel.Eq{"student_id": studentID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building SQL: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.AdvisorMessage, 0, limit)
	for rows.Next() {
		var m models.AdvisorMessage
		if err := rows.Scan(&m.ID, &m.StudentID, &m.Semester, &m.Question, &m.Answer, &m.Model, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning advisor message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating advisor messages: %w", err)
	}

	return messages, nil
}
