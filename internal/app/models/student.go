package models

import (
	"time"
)

// Student is the full academic record of one account, stored as a single row with the
// semester list kept as a JSON document
type Student struct {
	ID              int64      `json:"id" db:"id" example:"1"`
	Name            string     `json:"name" db:"name" example:"John Doe"`
	RegNo           string     `json:"reg_no" db:"reg_no" example:"123456"`
	Email           string     `json:"email" db:"email" example:"jdoe@example.com"`
	CurrentSemester int        `json:"current_semester" db:"current_semester" example:"1"`
	HashedPassword  string     `json:"-" db:"hashed_password"`
	Semesters       []Semester `json:"semesters" db:"semesters"`
	Version         int64      `json:"-" db:"version"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Semester groups the subjects taken under one semester number
type Semester struct {
	SemesterNumber int       `json:"semester_number" example:"1"`
	Subjects       []Subject `json:"subjects"`
	SGPA           *float64  `json:"sgpa"`
}

// Subject is one course enrolment; Grade stays nil until the semester is completed
type Subject struct {
	Name    string  `json:"name" example:"Intro to CS"`
	Code    string  `json:"code" example:"CS101"`
	Credits int     `json:"credits" example:"4"`
	Grade   *string `json:"grade"`
}

// InitialSemester is the semester every new record starts in
const InitialSemester = 1

// Clone returns a deep copy so that a transition can be applied without touching the
// caller's snapshot
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Semesters != nil {
		cp.Semesters = make([]Semester, len(s.Semesters))
		for i := range s.Semesters {
			cp.Semesters[i] = s.Semesters[i].Clone()
		}
	}
	return &cp
}

// Clone returns a deep copy of the semester
func (s Semester) Clone() Semester {
	cp := s
	if s.SGPA != nil {
		v := *s.SGPA
		cp.SGPA = &v
	}
	if s.Subjects != nil {
		cp.Subjects = make([]Subject, len(s.Subjects))
		for i := range s.Subjects {
			cp.Subjects[i] = s.Subjects[i].Clone()
		}
	}
	return cp
}

// Clone returns a deep copy of the subject
func (s Subject) Clone() Subject {
	cp := s
	if s.Grade != nil {
		g := *s.Grade
		cp.Grade = &g
	}
	return cp
}

// HasGrade reports whether a grade has been assigned
func (s Subject) HasGrade() bool {
	return s.Grade != nil
}

// GradeValue returns the assigned grade or an empty string
func (s Subject) GradeValue() string {
	if s.Grade == nil {
		return ""
	}
	return *s.Grade
}
