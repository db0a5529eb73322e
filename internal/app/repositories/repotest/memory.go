// Package repotest provides in-memory repositories with the same contracts as the
// Postgres ones, for service and handler tests.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/advisr/advisr-backend/internal/app/models"
	"github.com/advisr/advisr-backend/internal/pkg/apperrors"
)

// StudentStore is an in-memory student repository with version checked saves
type StudentStore struct {
	mu       sync.Mutex
	nextID   int64
	students map[int64]*models.Student

	// BeforeSave, when set, runs before each SaveProgress while the store is unlocked.
	// Tests use it to interleave a competing write.
	BeforeSave func(attempt int)
	// SaveErr, when set, is returned by SaveProgress instead of writing
	SaveErr error

	saves int
}

// NewStudentStore creates an empty store
func NewStudentStore() *StudentStore {
	return &StudentStore{students: make(map[int64]*models.Student)}
}

// Create stores a copy of student and assigns its id
func (s *StudentStore) Create(_ context.Context, student *models.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.students {
		if existing.RegNo == student.RegNo {
			return apperrors.ErrRegNoAlreadyExists
		}
		if existing.Email == student.Email {
			return apperrors.ErrEmailAlreadyExists
		}
	}

	s.nextID++
	now := time.Now()
	student.ID = s.nextID
	student.Version = 0
	student.CreatedAt = now
	student.UpdatedAt = now
	if student.Semesters == nil {
		student.Semesters = []models.Semester{}
	}
	s.students[student.ID] = student.Clone()
	return nil
}

// GetByID returns a copy of the stored student
func (s *StudentStore) GetByID(_ context.Context, id int64) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[id]
	if !ok {
		return nil, apperrors.ErrStudentNotFound
	}
	return st.Clone(), nil
}

// GetByRegNo returns a copy of the student with the registration number
func (s *StudentStore) GetByRegNo(_ context.Context, regNo string) (*models.Student, error) {
	return s.find(func(st *models.Student) bool { return st.RegNo == regNo })
}

// GetByRegNoOrEmail matches the registration number first, then the email
func (s *StudentStore) GetByRegNoOrEmail(ctx context.Context, username string) (*models.Student, error) {
	if st, err := s.GetByRegNo(ctx, username); err == nil {
		return st, nil
	}
	return s.find(func(st *models.Student) bool { return st.Email == username })
}

func (s *StudentStore) find(match func(*models.Student) bool) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.students {
		if match(st) {
			return st.Clone(), nil
		}
	}
	return nil, apperrors.ErrStudentNotFound
}

// SaveProgress mirrors the conditional UPDATE of the Postgres repository
func (s *StudentStore) SaveProgress(_ context.Context, student *models.Student, expectedVersion int64) error {
	s.mu.Lock()
	s.saves++
	attempt := s.saves
	hook := s.BeforeSave
	s.mu.Unlock()

	if hook != nil {
		hook(attempt)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SaveErr != nil {
		return s.SaveErr
	}

	stored, ok := s.students[student.ID]
	if !ok || stored.Version != expectedVersion {
		return apperrors.ErrStudentVersionStale
	}

	stored.CurrentSemester = student.CurrentSemester
	stored.Semesters = student.Clone().Semesters
	stored.Version++
	stored.UpdatedAt = time.Now()

	student.Version = stored.Version
	student.UpdatedAt = stored.UpdatedAt
	return nil
}

// Saves reports how many SaveProgress calls were made
func (s *StudentStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Mutate applies fn to the stored record and bumps its version, as a competing writer would
func (s *StudentStore) Mutate(id int64, fn func(*models.Student)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.students[id]; ok {
		fn(st)
		st.Version++
	}
}

// MessageStore is an in-memory advisor message repository
type MessageStore struct {
	mu       sync.Mutex
	nextID   int64
	messages []*models.AdvisorMessage

	// CreateErr, when set, is returned by Create
	CreateErr error
}

// NewMessageStore creates an empty store
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Create appends a copy of message
func (m *MessageStore) Create(_ context.Context, message *models.AdvisorMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return m.CreateErr
	}

	m.nextID++
	message.ID = m.nextID
	message.CreatedAt = time.Now()
	cp := *message
	m.messages = append(m.messages, &cp)
	return nil
}

// ListByStudent returns up to limit messages of the student, newest first
func (m *MessageStore) ListByStudent(_ context.Context, studentID int64, limit int) ([]*models.AdvisorMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.AdvisorMessage, 0)
	for _, msg := range m.messages {
		if msg.StudentID == studentID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
