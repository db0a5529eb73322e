package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/advisr/advisr-backend/internal/app/models"
	"github.com/advisr/advisr-backend/internal/app/progression"
	"github.com/advisr/advisr-backend/internal/app/repositories"
	"github.com/advisr/advisr-backend/internal/pkg/apperrors"
	"github.com/advisr/advisr-backend/internal/pkg/llm"
)

const (
	ruleBasedModel  = "rule-based"
	maxHistoryLimit = 100
)

// ChatConfig tunes the advisor chat
type ChatConfig struct {
	SystemPrompt     string
	MaxMessageLength int
	HistoryLimit     int
}

// ChatService answers advisor questions with the student's record as context
type ChatService struct {
	generator llm.TextGenerator
	messages  repositories.IAdvisorMessageRepository
	failing   string
	config    ChatConfig
	logger    zerolog.Logger
}

// NewChatService creates a new ChatService. With a nil generator the service answers
// from a small set of canned replies.
func NewChatService(
	generator llm.TextGenerator,
	messages repositories.IAdvisorMessageRepository,
	scale models.GradeScale,
	config ChatConfig,
	logger zerolog.Logger,
) *ChatService {
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 20
	}
	return &ChatService{
		generator: generator,
		messages:  messages,
		failing:   scale.Failing(),
		config:    config,
		logger:    logger,
	}
}

// Chat answers message for student and records the exchange
func (s *ChatService) Chat(ctx context.Context, student *models.Student, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", apperrors.NewValidationError("message cannot be empty", map[string]interface{}{"field": "message"})
	}
	if s.config.MaxMessageLength > 0 && utf8.RuneCountInString(message) > s.config.MaxMessageLength {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("message must be at most %d characters", s.config.MaxMessageLength),
			map[string]interface{}{"field": "message"},
		)
	}

	var (
		reply string
		model string
	)
	if s.generator == nil {
		reply = cannedReply(student, message)
		model = ruleBasedModel
	} else {
		var err error
		reply, err = s.generator.Generate(ctx, s.config.SystemPrompt, BuildAdvisorPrompt(student, message, s.failing))
		if err != nil {
			s.logger.Error().Err(err).Int64("studentID", student.ID).Msg("Advisor generation failed")
			return "", apperrors.NewExternalServiceError("the advisor is unavailable right now", err)
		}
		model = s.generator.Model()
	}

	record := &models.AdvisorMessage{
		StudentID: student.ID,
		Semester:  student.CurrentSemester,
		Question:  message,
		Answer:    reply,
		Model:     model,
	}
	if err := s.messages.Create(ctx, record); err != nil {
		// history is best effort
		s.logger.Warn().Err(err).Int64("studentID", student.ID).Msg("Failed to record advisor exchange")
	}

	return reply, nil
}

// History lists the student's past exchanges, newest first
func (s *ChatService) History(ctx context.Context, student *models.Student, limit int) ([]*models.AdvisorMessage, error) {
	if limit <= 0 {
		limit = s.config.HistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	messages, err := s.messages.ListByStudent(ctx, student.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing advisor messages: %w", err)
	}
	return messages, nil
}

// BuildAdvisorPrompt renders the student's record followed by the question
func BuildAdvisorPrompt(student *models.Student, question, failingGrade string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Student: %s (registration number %s)\n", student.Name, student.RegNo)
	fmt.Fprintf(&b, "Current semester: %d\n", student.CurrentSemester)

	b.WriteString("\nCurrent subjects:\n")
	current := progression.CurrentSubjects(student, student.CurrentSemester)
	if len(current) == 0 {
		b.WriteString("- none recorded\n")
	}
	for _, sub := range current {
		fmt.Fprintf(&b, "- %s %s (%d credits)\n", sub.Code, sub.Name, sub.Credits)
	}

	var failed []string
	b.WriteString("\nCompleted semesters:\n")
	completed := 0
	for _, sem := range progression.SortedHistory(progression.History(student)) {
		if sem.SemesterNumber >= student.CurrentSemester {
			continue
		}
		completed++
		grades := make([]string, 0, len(sem.Subjects))
		for _, sub := range sem.Subjects {
			grade := sub.GradeValue()
			if grade == "" {
				grade = "ungraded"
			}
			grades = append(grades, fmt.Sprintf("%s %s", sub.Code, grade))
			if models.NormalizeGrade(sub.GradeValue()) == failingGrade {
				failed = append(failed, fmt.Sprintf("%s (semester %d)", sub.Code, sem.SemesterNumber))
			}
		}
		fmt.Fprintf(&b, "- Semester %d: %s\n", sem.SemesterNumber, strings.Join(grades, ", "))
	}
	if completed == 0 {
		b.WriteString("- none\n")
	}

	if len(failed) > 0 {
		fmt.Fprintf(&b, "\nFailed subjects carried forward: %s\n", strings.Join(failed, ", "))
	}

	fmt.Fprintf(&b, "\nQuestion: %s\n", question)
	return b.String()
}

func cannedReply(student *models.Student, message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "hello"):
		name := student.Name
		if name == "" {
			name = "Student"
		}
		return fmt.Sprintf("Hello %s! How can I help you today?", name)
	case strings.Contains(lower, "semester"):
		return fmt.Sprintf("You are currently in semester %d.", student.CurrentSemester)
	default:
		return "I am a basic chatbot. I'm still learning!"
	}
}
