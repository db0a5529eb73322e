// Package progression holds the academic progression rules: how a student's current
// semester, its subject list and the recorded grades evolve as subjects are added and
// semesters are completed.
//
// Functions here are pure. Mutating operations change the *models.Student they are given,
// so callers that need to keep the original snapshot pass student.Clone(). Every error is
// returned before the first mutation.
package progression

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/advisr/advisr-backend/internal/app/models"
)

var (
	// ErrInvalidState is returned when completion is requested for a semester with no subjects
	ErrInvalidState = errors.New("no subjects recorded for current semester")
	// ErrDuplicateSubject is returned by AddSubject under DuplicateReject
	ErrDuplicateSubject = errors.New("subject code already recorded for current semester")
	// ErrIncompleteGrades is returned when RequireAllGrades is set and a subject has no grade
	ErrIncompleteGrades = errors.New("grades missing for subjects in current semester")
	// ErrInvalidGrade is returned for grade tokens outside the configured scale
	ErrInvalidGrade = errors.New("grade is not on the configured scale")
	// ErrInvalidSubject is returned for subjects that fail basic validation
	ErrInvalidSubject = errors.New("invalid subject")
)

// DuplicatePolicy decides what AddSubject does with a code that already exists in the
// current semester
type DuplicatePolicy string

const (
	// DuplicateAllow records the subject again
	DuplicateAllow DuplicatePolicy = "allow"
	// DuplicateReject refuses the subject with ErrDuplicateSubject
	DuplicateReject DuplicatePolicy = "reject"
)

// ParseDuplicatePolicy parses a config value; empty means DuplicateAllow
func ParseDuplicatePolicy(value string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", DuplicateAllow:
		return DuplicateAllow, nil
	case DuplicateReject:
		return DuplicateReject, nil
	default:
		return "", fmt.Errorf("unknown duplicate subject policy %q", value)
	}
}

// Options configures an Engine
type Options struct {
	Scale            models.GradeScale
	Duplicates       DuplicatePolicy
	RequireAllGrades bool
}

// Engine applies progression transitions under a fixed policy
type Engine struct {
	opts Options
}

// CompletionResult describes the outcome of CompleteSemester
type CompletionResult struct {
	CompletedSemester    int
	NextSemester         int
	FailedCarriedForward int
	CarriedForward       []models.Subject
}

// NewEngine creates an Engine; zero-valued options fall back to the default grade scale
// and DuplicateAllow
func NewEngine(opts Options) *Engine {
	if len(opts.Scale.Tokens()) == 0 {
		opts.Scale = models.NewGradeScale(models.DefaultGradeScale, models.GradeFail)
	}
	if opts.Duplicates == "" {
		opts.Duplicates = DuplicateAllow
	}
	return &Engine{opts: opts}
}

// Scale returns the grade scale the engine validates against
func (e *Engine) Scale() models.GradeScale {
	return e.opts.Scale
}

// CurrentSubjects returns the subjects recorded for semesterNumber, or an empty list when
// that semester has no entry yet
func CurrentSubjects(student *models.Student, semesterNumber int) []models.Subject {
	if student == nil {
		return []models.Subject{}
	}
	idx := findSemester(student.Semesters, semesterNumber)
	if idx < 0 {
		return []models.Subject{}
	}
	return cloneSubjects(student.Semesters[idx].Subjects)
}

// History returns every semester in storage order. Callers that need the list ordered by
// semester number use SortedHistory.
func History(student *models.Student) []models.Semester {
	if student == nil || len(student.Semesters) == 0 {
		return []models.Semester{}
	}
	out := make([]models.Semester, len(student.Semesters))
	for i := range student.Semesters {
		out[i] = student.Semesters[i].Clone()
	}
	return out
}

// SortedHistory returns history ordered by ascending semester number without modifying
// its argument
func SortedHistory(history []models.Semester) []models.Semester {
	out := make([]models.Semester, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SemesterNumber < out[j].SemesterNumber
	})
	return out
}

// ValidateSubject checks the fields a new subject must carry
func ValidateSubject(subject models.Subject) error {
	switch {
	case strings.TrimSpace(subject.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidSubject)
	case strings.TrimSpace(subject.Code) == "":
		return fmt.Errorf("%w: code is required", ErrInvalidSubject)
	case subject.Credits <= 0:
		return fmt.Errorf("%w: credits must be positive", ErrInvalidSubject)
	}
	return nil
}

// AddSubject appends subject to the student's current semester, creating the semester
// entry when it does not exist, and returns the resulting subject list
func (e *Engine) AddSubject(student *models.Student, subject models.Subject) ([]models.Subject, error) {
	if err := ValidateSubject(subject); err != nil {
		return nil, err
	}

	subject = models.Subject{
		Name:    strings.TrimSpace(subject.Name),
		Code:    strings.TrimSpace(subject.Code),
		Credits: subject.Credits,
	}

	current := currentSemesterNumber(student)
	idx := findSemester(student.Semesters, current)
	if idx < 0 {
		student.Semesters = append(student.Semesters, models.Semester{
			SemesterNumber: current,
			Subjects:       []models.Subject{subject},
		})
		return cloneSubjects(student.Semesters[len(student.Semesters)-1].Subjects), nil
	}

	if e.opts.Duplicates == DuplicateReject && hasCode(student.Semesters[idx].Subjects, subject.Code) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSubject, subject.Code)
	}

	student.Semesters[idx].Subjects = append(student.Semesters[idx].Subjects, subject)
	return cloneSubjects(student.Semesters[idx].Subjects), nil
}

// CompleteSemester grades the current semester, carries failed subjects into the next
// semester with their grade cleared, and advances the current semester by one
func (e *Engine) CompleteSemester(student *models.Student, grades map[string]string) (CompletionResult, error) {
	current := currentSemesterNumber(student)
	idx := findSemester(student.Semesters, current)
	if idx < 0 || len(student.Semesters[idx].Subjects) == 0 {
		return CompletionResult{}, ErrInvalidState
	}

	assigned, err := e.normalizeGrades(grades)
	if err != nil {
		return CompletionResult{}, err
	}

	subjects := student.Semesters[idx].Subjects
	if e.opts.RequireAllGrades {
		var missing []string
		for _, sub := range subjects {
			if _, ok := assigned[sub.Code]; !ok && !sub.HasGrade() {
				missing = append(missing, sub.Code)
			}
		}
		if len(missing) > 0 {
			return CompletionResult{}, fmt.Errorf("%w: %s", ErrIncompleteGrades, strings.Join(missing, ", "))
		}
	}

	var carried []models.Subject
	for i := range subjects {
		if grade, ok := assigned[subjects[i].Code]; ok {
			g := grade
			subjects[i].Grade = &g
		}
		if subjects[i].HasGrade() && e.opts.Scale.IsFailing(*subjects[i].Grade) {
			carried = append(carried, models.Subject{
				Name:    subjects[i].Name,
				Code:    subjects[i].Code,
				Credits: subjects[i].Credits,
			})
		}
	}

	next := current + 1
	if len(carried) > 0 {
		nextIdx := findSemester(student.Semesters, next)
		if nextIdx >= 0 {
			student.Semesters[nextIdx].Subjects = append(student.Semesters[nextIdx].Subjects, carried...)
		} else {
			student.Semesters = append(student.Semesters, models.Semester{
				SemesterNumber: next,
				Subjects:       cloneSubjects(carried),
			})
		}
	}
	student.CurrentSemester = next

	return CompletionResult{
		CompletedSemester:    current,
		NextSemester:         next,
		FailedCarriedForward: len(carried),
		CarriedForward:       carried,
	}, nil
}

func (e *Engine) normalizeGrades(grades map[string]string) (map[string]string, error) {
	assigned := make(map[string]string, len(grades))
	for code, grade := range grades {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if !e.opts.Scale.Accepts(grade) {
			return nil, fmt.Errorf("%w: %q for %s", ErrInvalidGrade, grade, code)
		}
		assigned[code] = models.NormalizeGrade(grade)
	}
	return assigned, nil
}

func currentSemesterNumber(student *models.Student) int {
	if student.CurrentSemester < models.InitialSemester {
		return models.InitialSemester
	}
	return student.CurrentSemester
}

func findSemester(semesters []models.Semester, number int) int {
	for i := range semesters {
		if semesters[i].SemesterNumber == number {
			return i
		}
	}
	return -1
}

func hasCode(subjects []models.Subject, code string) bool {
	for _, s := range subjects {
		if s.Code == code {
			return true
		}
	}
	return false
}

func cloneSubjects(subjects []models.Subject) []models.Subject {
	out := make([]models.Subject, len(subjects))
	for i := range subjects {
		out[i] = subjects[i].Clone()
	}
	return out
}
