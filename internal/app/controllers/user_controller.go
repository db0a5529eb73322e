package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/advisr/advisr-backend/internal/app/models"
	"github.com/advisr/advisr-backend/internal/app/models/dto"
	"github.com/advisr/advisr-backend/internal/app/services"
	"github.com/advisr/advisr-backend/internal/middleware"
)

// UserController serves the authenticated student's own academic record
type UserController struct {
	academicService *services.AcademicService
	gradesValidator *dto.GradesValidator
	logger          zerolog.Logger
}

// NewUserController creates a new user controller
func NewUserController(academicService *services.AcademicService, gradesValidator *dto.GradesValidator, logger zerolog.Logger) *UserController {
	return &UserController{
		academicService: academicService,
		gradesValidator: gradesValidator,
		logger:          logger,
	}
}

// GetMe returns the caller's profile
// @Summary Current student profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.StudentResponse}
// @Router /users/me [get]
func (c *UserController) GetMe(ctx *gin.Context) {
	student, ok := requireStudent(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewStudentResponse(student)))
}

// GetSubjects lists the subjects of the current semester
// @Summary Current semester subjects
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]models.Subject}
// @Router /users/me/subjects [get]
func (c *UserController) GetSubjects(ctx *gin.Context) {
	student, ok := requireStudent(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(c.academicService.GetCurrentSubjects(student)))
}

// AddSubject adds a subject to the current semester
// @Summary Add a subject to the current semester
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.AddSubjectRequest true "Subject"
// @Success 201 {object} dto.APIResponse{data=[]models.Subject}
// @Failure 409 {object} dto.APIResponse{error=dto.ErrorDetail} "Duplicate code or concurrent update"
// @Router /users/me/subjects [post]
func (c *UserController) AddSubject(ctx *gin.Context) {
	student, ok := requireStudent(ctx)
	if !ok {
		return
	}

	var req dto.AddSubjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	subjects, err := c.academicService.AddSubject(ctx.Request.Context(), student, req.ToSubject())
	if err != nil {
		c.logger.Warn().Err(err).Int64("studentID", student.ID).Msg("Add subject failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(subjects))
}

// CompleteSemester grades the current semester and advances the student
// @Summary Complete the current semester
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CompleteSemesterRequest true "Subject code to grade"
// @Success 200 {object} dto.APIResponse{data=dto.CompleteSemesterResponse}
// @Failure 400 {object} dto.APIResponse{error=dto.ErrorDetail} "No subjects recorded or invalid grade"
// @Router /users/me/complete-semester [post]
func (c *UserController) CompleteSemester(ctx *gin.Context) {
	student, ok := requireStudent(ctx)
	if !ok {
		return
	}

	var req dto.CompleteSemesterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}
	if err := c.gradesValidator.Validate(req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	result, err := c.academicService.CompleteSemester(ctx.Request.Context(), student, req)
	if err != nil {
		c.logger.Warn().Err(err).Int64("studentID", student.ID).Msg("Complete semester failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.CompleteSemesterResponse{
		Message:              "Semester completed",
		CompletedSemester:    result.CompletedSemester,
		NextSemester:         result.NextSemester,
		FailedCarriedForward: result.FailedCarriedForward,
	}))
}

// GetHistory returns every semester, in storage order unless sort=number
// @Summary Semester history
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param sort query string false "number to order by semester number"
// @Success 200 {object} dto.APIResponse{data=[]models.Semester}
// @Router /users/me/history [get]
func (c *UserController) GetHistory(ctx *gin.Context) {
	student, ok := requireStudent(ctx)
	if !ok {
		return
	}

	var query dto.HistoryQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return
	}

	history := c.academicService.GetHistory(student, query.Sort == "number")
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(history))
}

// requireStudent fetches the resolved student or answers 401
func requireStudent(ctx *gin.Context) (*models.Student, bool) {
	student, ok := middleware.CurrentStudent(ctx)
	if !ok {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(
			dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required"),
		))
		return nil, false
	}
	return student, true
}
