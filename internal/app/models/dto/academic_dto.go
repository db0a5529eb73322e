package dto

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/advisr/advisr-backend/internal/app/models"
)

// AddSubjectRequest is the body of POST /users/me/subjects. A grade is never accepted
// here; it is assigned on completion.
type AddSubjectRequest struct {
	Name    string `json:"name" binding:"required,max=200" example:"Data Structures"`
	Code    string `json:"code" binding:"required,max=32" example:"CS201"`
	Credits int    `json:"credits" binding:"required,min=1,max=30" example:"4"`
}

// ToSubject converts the request into an ungraded subject
func (r AddSubjectRequest) ToSubject() models.Subject {
	return models.Subject{Name: r.Name, Code: r.Code, Credits: r.Credits}
}

// CompleteSemesterRequest maps subject code to grade token
type CompleteSemesterRequest map[string]string

// CompleteSemesterResponse reports the outcome of a completion
type CompleteSemesterResponse struct {
	Message              string `json:"message" example:"Semester completed"`
	CompletedSemester    int    `json:"completed_semester" example:"1"`
	NextSemester         int    `json:"next_semester" example:"2"`
	FailedCarriedForward int    `json:"failed_carried_forward" example:"0"`
}

// HistoryQuery holds the query parameters of GET /users/me/history
type HistoryQuery struct {
	Sort string `form:"sort" binding:"omitempty,oneof=number"`
}

// GradesValidator checks a completion payload against the configured grade scale
type GradesValidator struct {
	validate *validator.Validate
}

// NewGradesValidator registers the grade tag for scale on a dedicated validator
func NewGradesValidator(scale models.GradeScale) (*GradesValidator, error) {
	v := validator.New()
	err := v.RegisterValidation("grade", func(fl validator.FieldLevel) bool {
		return scale.Accepts(fl.Field().String())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register grade validation: %w", err)
	}
	return &GradesValidator{validate: v}, nil
}

// Validate returns validator.ValidationErrors for blank codes or unknown grades
func (g *GradesValidator) Validate(req CompleteSemesterRequest) error {
	return g.validate.Var(map[string]string(req), "dive,keys,required,max=32,endkeys,grade")
}
