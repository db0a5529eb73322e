package models

import "time"

// AdvisorMessage is one question/answer exchange between a student and the advisor chat
type AdvisorMessage struct {
	ID        int64     `json:"id" db:"id"`
	StudentID int64     `json:"student_id" db:"student_id"`
	Semester  int       `json:"semester" db:"semester"`
	Question  string    `json:"question" db:"question"`
	Answer    string    `json:"answer" db:"answer"`
	Model     string    `json:"model" db:"model"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
