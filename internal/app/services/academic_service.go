package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/advisr/advisr-backend/internal/app/models"
	"github.com/advisr/advisr-backend/internal/app/progression"
	"github.com/advisr/advisr-backend/internal/app/repositories"
	"github.com/advisr/advisr-backend/internal/pkg/apperrors"
	"github.com/advisr/advisr-backend/internal/pkg/cache"
)

// AcademicService applies progression transitions to stored student records.
//
// Every write is a whole-record compare-and-swap on the version column: the transition
// runs on a clone, the clone is saved only if nobody wrote in between, and on a lost
// race the record is reloaded and the transition re-applied.
type AcademicService struct {
	studentRepo repositories.IStudentRepository
	cache       cache.StudentCache
	engine      *progression.Engine
	maxAttempts int
	logger      zerolog.Logger
}

// NewAcademicService creates a new AcademicService
func NewAcademicService(
	studentRepo repositories.IStudentRepository,
	studentCache cache.StudentCache,
	engine *progression.Engine,
	maxAttempts int,
	logger zerolog.Logger,
) *AcademicService {
	if studentCache == nil {
		studentCache = cache.NoopStudentCache{}
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &AcademicService{
		studentRepo: studentRepo,
		cache:       studentCache,
		engine:      engine,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// GetCurrentSubjects lists the subjects of the student's current semester
func (s *AcademicService) GetCurrentSubjects(student *models.Student) []models.Subject {
	return progression.CurrentSubjects(student, student.CurrentSemester)
}

// GetHistory returns all semesters in storage order, or ordered by number when sorted is set
func (s *AcademicService) GetHistory(student *models.Student, sorted bool) []models.Semester {
	history := progression.History(student)
	if sorted {
		return progression.SortedHistory(history)
	}
	return history
}

// AddSubject appends subject to the current semester and returns that semester's subjects
// as stored after the write
func (s *AcademicService) AddSubject(ctx context.Context, student *models.Student, subject models.Subject) ([]models.Subject, error) {
	var subjects []models.Subject
	err := s.update(ctx, student, func(st *models.Student) error {
		var err error
		subjects, err = s.engine.AddSubject(st, subject)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("studentID", student.ID).
		Str("code", subject.Code).
		Int("semester", student.CurrentSemester).
		Msg("Subject added")
	return subjects, nil
}

// CompleteSemester grades the current semester, carries failed subjects into the next
// one and advances the student
func (s *AcademicService) CompleteSemester(ctx context.Context, student *models.Student, grades map[string]string) (progression.CompletionResult, error) {
	var result progression.CompletionResult
	err := s.update(ctx, student, func(st *models.Student) error {
		var err error
		result, err = s.engine.CompleteSemester(st, grades)
		return err
	})
	if err != nil {
		return progression.CompletionResult{}, err
	}

	s.logger.Info().
		Int64("studentID", student.ID).
		Int("completedSemester", result.CompletedSemester).
		Int("nextSemester", result.NextSemester).
		Int("failedCarriedForward", result.FailedCarriedForward).
		Msg("Semester completed")
	return result, nil
}

// update runs transition against the freshest known snapshot until a save succeeds.
// A transition is only re-applied to a reloaded record that is still in the semester
// the caller saw; once another write has moved the student on, the request is stale
// and answered with a conflict.
func (s *AcademicService) update(ctx context.Context, student *models.Student, transition func(*models.Student) error) error {
	current := student
	for attempt := 1; ; attempt++ {
		next := current.Clone()
		if err := transition(next); err != nil {
			return err
		}

		err := s.studentRepo.SaveProgress(ctx, next, current.Version)
		if err == nil {
			s.refresh(ctx, next)
			return nil
		}
		if !errors.Is(err, apperrors.ErrStudentVersionStale) {
			return fmt.Errorf("failed to save student progress: %w", err)
		}

		if attempt >= s.maxAttempts {
			s.logger.Warn().Int64("studentID", student.ID).Int("attempts", attempt).Msg("Giving up on contended student record")
			return apperrors.NewConflictError("student record was modified concurrently, please retry", err)
		}

		s.logger.Debug().Int64("studentID", student.ID).Int("attempt", attempt).Msg("Stale student version, reloading")
		current, err = s.studentRepo.GetByID(ctx, student.ID)
		if err != nil {
			return fmt.Errorf("failed to reload student: %w", err)
		}

		if current.CurrentSemester != student.CurrentSemester {
			s.logger.Info().
				Int64("studentID", student.ID).
				Int("expectedSemester", student.CurrentSemester).
				Int("currentSemester", current.CurrentSemester).
				Msg("Student advanced since request was read")
			return apperrors.NewConflictError("student record moved to another semester, please retry", apperrors.ErrStudentVersionStale)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// refresh stores the record just written. The cache keeps whichever version is newer,
// so this cannot lose to a read-through fill of an older row.
func (s *AcademicService) refresh(ctx context.Context, student *models.Student) {
	err := s.cache.Set(ctx, student)
	if err == nil {
		return
	}
	s.logger.Warn().Err(err).Int64("studentID", student.ID).Msg("Student cache write failed, invalidating")
	if err := s.cache.Invalidate(ctx, student.ID); err != nil {
		s.logger.Warn().Err(err).Int64("studentID", student.ID).Msg("Student cache invalidation failed")
	}
}
