package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/advisr/advisr-backend/internal/app/models/dto"
	"github.com/advisr/advisr-backend/internal/app/services"
	"github.com/advisr/advisr-backend/internal/middleware"
)

// ChatController handles the advisor chat
type ChatController struct {
	chatService *services.ChatService
	logger      zerolog.Logger
}

// NewChatController creates a new ChatController
func NewChatController(chatService *services.ChatService, logger zerolog.Logger) *ChatController {
	return &ChatController{
		chatService: chatService,
		logger:      logger,
	}
}

// Chat answers one advisor question
// @Summary Ask the advisor
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ChatRequest true "Question"
// @Success 200 {object} dto.APIResponse{data=dto.ChatResponse}
// @Failure 429 {object} dto.APIResponse{error=dto.ErrorDetail} "Rate limited"
// @Failure 502 {object} dto.APIResponse{error=dto.ErrorDetail} "Generation service failed"
// @Router /chat [post]
func (c *ChatController) Chat(ctx *gin.Context) {
	student, ok := requireStudent(ctx)
	if !ok {
		return
	}

	var req dto.ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	reply, err := c.chatService.Chat(ctx.Request.Context(), student, req.Message)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ChatResponse{Response: reply}))
}

// History lists past exchanges, newest first
// @Summary Advisor chat history
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum number of exchanges (1-100)"
// @Success 200 {object} dto.APIResponse{data=[]dto.AdvisorMessageResponse}
// @Router /chat/history [get]
func (c *ChatController) History(ctx *gin.Context) {
	student, ok := requireStudent(ctx)
	if !ok {
		return
	}

	var query dto.ChatHistoryQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	messages, err := c.chatService.History(ctx.Request.Context(), student, query.Limit)
	if err != nil {
		c.logger.Error().Err(err).Int64("studentID", student.ID).Msg("Failed to list advisor history")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewAdvisorMessageResponses(messages)))
}
