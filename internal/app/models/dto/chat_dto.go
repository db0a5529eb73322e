package dto

import (
	"time"

	"github.com/advisr/advisr-backend/internal/app/models"
)

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Message string `json:"message" binding:"required" example:"Which subjects should I retake?"`
}

// ChatResponse carries the advisor's reply
type ChatResponse struct {
	Response string `json:"response"`
}

// ChatHistoryQuery holds the query parameters of GET /chat/history
type ChatHistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// AdvisorMessageResponse is one past exchange
type AdvisorMessageResponse struct {
	ID        int64     `json:"id"`
	Semester  int       `json:"semester"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAdvisorMessageResponses converts stored exchanges into their public view
func NewAdvisorMessageResponses(messages []*models.AdvisorMessage) []AdvisorMessageResponse {
	out := make([]AdvisorMessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, AdvisorMessageResponse{
			ID:        m.ID,
			Semester:  m.Semester,
			Question:  m.Question,
			Answer:    m.Answer,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}
