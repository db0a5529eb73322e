package dto

import "github.com/advisr/advisr-backend/internal/app/models"

// RegisterRequest represents student registration data
type RegisterRequest struct {
	Name            string `json:"name" binding:"required,max=200" example:"John Doe"`
	RegNo           string `json:"reg_no" binding:"required,max=64" example:"123456"`
	Email           string `json:"email" binding:"required,email,max=255" example:"jdoe@example.com"`
	Password        string `json:"password" binding:"required,min=8,max=72"`
	CurrentSemester *int   `json:"current_semester,omitempty" binding:"omitempty,min=1,max=40" example:"1"`
}

// LoginRequest carries the OAuth2 password-grant fields; username is a registration
// number or an email address
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// TokenResponse is the OAuth2 token payload returned by /token
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type" example:"bearer"`
	ExpiresIn   int64  `json:"expires_in"`
}

// StudentResponse is the public view of a student record
type StudentResponse struct {
	ID              int64             `json:"id"`
	Name            string            `json:"name"`
	RegNo           string            `json:"reg_no"`
	Email           string            `json:"email"`
	CurrentSemester int               `json:"current_semester"`
	Semesters       []models.Semester `json:"semesters"`
}

// NewStudentResponse builds the public view of a student
func NewStudentResponse(student *models.Student) *StudentResponse {
	if student == nil {
		return nil
	}
	semesters := student.Semesters
	if semesters == nil {
		semesters = []models.Semester{}
	}
	return &StudentResponse{
		ID:              student.ID,
		Name:            student.Name,
		RegNo:           student.RegNo,
		Email:           student.Email,
		CurrentSemester: student.CurrentSemester,
		Semesters:       semesters,
	}
}
