package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisr/advisr-backend/internal/app/models"
)

func grade(g string) *string { return &g }

func newStudent() *models.Student {
	return &models.Student{ID: 1, Name: "Test", RegNo: "REG1", CurrentSemester: models.InitialSemester}
}

func subject(code string) models.Subject {
	return models.Subject{Name: "Subject " + code, Code: code, Credits: 3}
}

func TestCurrentSubjects_NoSemesterIsEmpty(t *testing.T) {
	s := newStudent()

	got := CurrentSubjects(s, 1)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, CurrentSubjects(nil, 1))
}

func TestCurrentSubjects_ReadIsIdempotent(t *testing.T) {
	e := NewEngine(Options{})
	s := newStudent()
	_, err := e.AddSubject(s, subject("CS101"))
	require.NoError(t, err)
	before := s.Clone()

	first := CurrentSubjects(s, 1)
	second := CurrentSubjects(s, 1)
	assert.Equal(t, first, second)
	assert.Equal(t, before, s)

	// Returned slices must not alias the record
	first[0].Name = "changed"
	assert.Equal(t, "Subject CS101", s.Semesters[0].Subjects[0].Name)
}

func TestAddSubject_LazilyCreatesSemester(t *testing.T) {
	e := NewEngine(Options{})
	s := newStudent()

	subjects, err := e.AddSubject(s, subject("CS101"))
	require.NoError(t, err)

	require.Len(t, s.Semesters, 1)
	assert.Equal(t, 1, s.Semesters[0].SemesterNumber)
	assert.Nil(t, s.Semesters[0].SGPA)
	require.Len(t, subjects, 1)
	assert.Equal(t, "CS101", subjects[0].Code)
	assert.Nil(t, subjects[0].Grade)
}

func TestAddSubject_ReturnsPostAppendList(t *testing.T) {
	e := NewEngine(Options{})
	s := newStudent()

	_, err := e.AddSubject(s, subject("CS101"))
	require.NoError(t, err)
	subjects, err := e.AddSubject(s, subject("MA101"))
	require.NoError(t, err)

	require.Len(t, subjects, 2)
	assert.Equal(t, []string{"CS101", "MA101"}, []string{subjects[0].Code, subjects[1].Code})
	assert.Len(t, s.Semesters, 1, "second add must extend the existing semester")
}

func TestAddSubject_ClearsIncomingGrade(t *testing.T) {
	e := NewEngine(Options{})
	s := newStudent()
	sub := subject("CS101")
	sub.Grade = grade("A")

	subjects, err := e.AddSubject(s, sub)
	require.NoError(t, err)
	assert.Nil(t, subjects[0].Grade)
}

func TestAddSubject_AppendsExactlyOnce(t *testing.T) {
	e := NewEngine(Options{})
	s := newStudent()
	_, err := e.AddSubject(s, subject("CS101"))
	require.NoError(t, err)

	before := len(CurrentSubjects(s, s.CurrentSemester))
	_, err = e.AddSubject(s, subject("CS101"))
	require.NoError(t, err)

	count := 0
	for _, sub := range CurrentSubjects(s, s.CurrentSemester) {
		if sub.Code == "CS101" {
			count++
		}
	}
	assert.Equal(t, before+1, len(CurrentSubjects(s, s.CurrentSemester)))
	assert.Equal(t, 2, count, "duplicates are accepted under the default policy")
}

func TestAddSubject_RejectDuplicatePolicy(t *testing.T) {
	e := NewEngine(Options{Duplicates: DuplicateReject})
	s := newStudent()
	_, err := e.AddSubject(s, subject("CS101"))
	require.NoError(t, err)

	_, err = e.AddSubject(s, subject("CS101"))
	assert.ErrorIs(t, err, ErrDuplicateSubject)
	assert.Len(t, s.Semesters[0].Subjects, 1)
}

func TestAddSubject_Validation(t *testing.T) {
	e := NewEngine(Options{})
	tests := []struct {
		name string
		sub  models.Subject
	}{
		{name: "missing name", sub: models.Subject{Code: "X1", Credits: 3}},
		{name: "missing code", sub: models.Subject{Name: "X", Credits: 3}},
		{name: "zero credits", sub: models.Subject{Name: "X", Code: "X1"}},
		{name: "negative credits", sub: models.Subject{Name: "X", Code: "X1", Credits: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStudent()
			_, err := e.AddSubject(s, tt.sub)
			assert.ErrorIs(t, err, ErrInvalidSubject)
			assert.Empty(t, s.Semesters)
		})
	}
}

func TestCompleteSemester_NoSubjects(t *testing.T) {
	e := NewEngine(Options{})

	t.Run("no semester entry", func(t *testing.T) {
		s := newStudent()
		_, err := e.CompleteSemester(s, map[string]string{"CS101": "A"})
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, 1, s.CurrentSemester)
	})

	t.Run("empty semester entry", func(t *testing.T) {
		s := newStudent()
		s.Semesters = []models.Semester{{SemesterNumber: 1, Subjects: []models.Subject{}}}
		_, err := e.CompleteSemester(s, nil)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, 1, s.CurrentSemester)
	})
}

func TestCompleteSemester_AppliesGrades(t *testing.T) {
	e := NewEngine(Options{})
	s := newStudent()
	_, _ = e.AddSubject(s, subject("CS101"))
	_, _ = e.AddSubject(s, subject("MA101"))

	res, err := e.CompleteSemester(s, map[string]string{"CS101": "A", "MA101": "B"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.NextSemester)
	assert.Equal(t, 1, res.CompletedSemester)
	assert.Zero(t, res.FailedCarriedForward)
	assert.Equal(t, 2, s.CurrentSemester)
	require.Len(t, s.Semesters, 1, "no failures means no next-semester entry")
	assert.Equal(t, "A", s.Semesters[0].Subjects[0].GradeValue())
	assert.Equal(t, "B", s.Semesters[0].Subjects[1].GradeValue())
	assert.Empty(t, CurrentSubjects(s, s.CurrentSemester))
}

func TestCompleteSemester_MissingCodesStayUngraded(t *testing.T) {
	e := NewEngine(Options{})
	s := newStudent()
	_, _ = e.AddSubject(s, subject("CS101"))
	_, _ = e.AddSubject(s, subject("MA101"))

	_, err := e.CompleteSemester(s, map[string]string{"CS101": "a+", "XX999": "A"})
	require.NoError(t, err)

	assert.Equal(t, "A+", s.Semesters[0].Subjects[0].GradeValue())
	assert.Nil(t, s.Semesters[0].Subjects[1].Grade)
}

func TestCompleteSemester_CarriesFailureForward(t *testing.T) {
	e := NewEngine(Options{})
	s := newStudent()
	_, _ = e.AddSubject(s, models.Subject{Name: "Data Structures", Code: "CS201", Credits: 4})

	res, err := e.CompleteSemester(s, map[string]string{"CS201": "F"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.FailedCarriedForward)
	assert.Equal(t, 2, s.CurrentSemester)

	require.Len(t, s.Semesters, 2)
	original := s.Semesters[0].Subjects[0]
	assert.Equal(t, "F", original.GradeValue())

	assert.Equal(t, 2, s.Semesters[1].SemesterNumber)
	require.Len(t, s.Semesters[1].Subjects, 1)
	carried := s.Semesters[1].Subjects[0]
	assert.Equal(t, "CS201", carried.Code)
	assert.Equal(t, "Data Structures", carried.Name)
	assert.Equal(t, 4, carried.Credits)
	assert.Nil(t, carried.Grade)
}

func TestCompleteSemester_MergesIntoExistingNextSemester(t *testing.T) {
	e := NewEngine(Options{})
	s := newStudent()
	s.Semesters = []models.Semester{
		{SemesterNumber: 1, Subjects: []models.Subject{subject("CS201"), subject("MA201")}},
		{SemesterNumber: 2, Subjects: []models.Subject{subject("PH301")}},
	}

	res, err := e.CompleteSemester(s, map[string]string{"CS201": "F", "MA201": "F"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.FailedCarriedForward)
	require.Len(t, s.Semesters, 2)
	next := s.Semesters[1].Subjects
	require.Len(t, next, 3)
	assert.Equal(t, "PH301", next[0].Code)
	assert.Equal(t, "CS201", next[1].Code)
	assert.Equal(t, "MA201", next[2].Code)
}

func TestCompleteSemester_InvalidGradeLeavesRecordUntouched(t *testing.T) {
	e := NewEngine(Options{})
	s := newStudent()
	_, _ = e.AddSubject(s, subject("CS101"))
	before := s.Clone()

	_, err := e.CompleteSemester(s, map[string]string{"CS101": "Z"})
	assert.ErrorIs(t, err, ErrInvalidGrade)
	assert.Equal(t, before, s)
}

func TestCompleteSemester_RequireAllGrades(t *testing.T) {
	e := NewEngine(Options{RequireAllGrades: true})
	s := newStudent()
	_, _ = e.AddSubject(s, subject("CS101"))
	_, _ = e.AddSubject(s, subject("MA101"))
	before := s.Clone()

	_, err := e.CompleteSemester(s, map[string]string{"CS101": "A"})
	assert.ErrorIs(t, err, ErrIncompleteGrades)
	assert.Contains(t, err.Error(), "MA101")
	assert.Equal(t, before, s)
}

func TestCompleteSemester_CustomFailingGrade(t *testing.T) {
	e := NewEngine(Options{Scale: models.NewGradeScale([]string{"PASS"}, "FAIL")})
	s := newStudent()
	_, _ = e.AddSubject(s, subject("CS101"))
	_, _ = e.AddSubject(s, subject("MA101"))

	res, err := e.CompleteSemester(s, map[string]string{"CS101": "pass", "MA101": "fail"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedCarriedForward)
	assert.Equal(t, "MA101", res.CarriedForward[0].Code)
}

func TestProgression_MonotonicAcrossSequence(t *testing.T) {
	e := NewEngine(Options{})
	s := newStudent()
	last := s.CurrentSemester

	steps := []map[string]string{
		{"CS101": "F"},
		{"CS101": "C"},
		{"CS101": "F"},
	}
	for _, grades := range steps {
		if len(CurrentSubjects(s, s.CurrentSemester)) == 0 {
			_, err := e.AddSubject(s, subject("CS101"))
			require.NoError(t, err)
		}
		_, err := e.CompleteSemester(s, grades)
		require.NoError(t, err)
		assert.Equal(t, last+1, s.CurrentSemester)
		last = s.CurrentSemester

		// A further completion only succeeds when the new semester already holds subjects
		_, err = e.CompleteSemester(s.Clone(), map[string]string{})
		if len(CurrentSubjects(s, s.CurrentSemester)) == 0 {
			assert.ErrorIs(t, err, ErrInvalidState)
		} else {
			assert.NoError(t, err)
		}
	}

	assert.Equal(t, 4, s.CurrentSemester)
	assert.Len(t, History(s), 4)
}

func TestHistory_StorageOrderAndSorting(t *testing.T) {
	s := newStudent()
	s.Semesters = []models.Semester{
		{SemesterNumber: 3},
		{SemesterNumber: 1},
		{SemesterNumber: 2},
	}

	history := History(s)
	assert.Equal(t, []int{3, 1, 2}, numbers(history))
	assert.Equal(t, []int{1, 2, 3}, numbers(SortedHistory(history)))
	assert.Equal(t, []int{3, 1, 2}, numbers(history), "sorting must not modify its input")
	assert.Equal(t, History(s), History(s))
	assert.NotNil(t, History(newStudent()))
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DuplicateAllow, p)

	p, err = ParseDuplicatePolicy(" Reject ")
	require.NoError(t, err)
	assert.Equal(t, DuplicateReject, p)

	_, err = ParseDuplicatePolicy("merge")
	assert.Error(t, err)
}

func numbers(semesters []models.Semester) []int {
	out := make([]int, len(semesters))
	for i, s := range semesters {
		out[i] = s.SemesterNumber
	}
	return out
}
