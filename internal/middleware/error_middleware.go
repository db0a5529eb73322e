package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/advisr/advisr-backend/internal/app/models/dto"
	"github.com/advisr/advisr-backend/internal/app/progression"
	"github.com/advisr/advisr-backend/internal/pkg/apperrors"
)

// HandleAPIError handles common API errors and returns appropriate responses
func HandleAPIError(c *gin.Context, err error) {
	status, detail := mapError(err)

	var custom *apperrors.CustomError
	if errors.As(err, &custom) && custom.Details != nil {
		detail = detail.WithDetails(custom.Details)
	}

	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.JSON(status, dto.APIResponse{Error: detail})
}

func mapError(err error) (int, *dto.ErrorDetail) {
	switch {
	// academic progression
	case errors.Is(err, progression.ErrInvalidState):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeInvalidSemesterState, "No subjects recorded for current semester")
	case errors.Is(err, progression.ErrDuplicateSubject):
		return http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeDuplicateSubject, err.Error())
	case errors.Is(err, progression.ErrIncompleteGrades):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeIncompleteGrades, err.Error())
	case errors.Is(err, progression.ErrInvalidGrade):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeInvalidGrade, err.Error())
	case errors.Is(err, progression.ErrInvalidSubject):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeValidationFailed, err.Error())

	// resources
	case errors.Is(err, apperrors.ErrStudentNotFound), errors.Is(err, apperrors.ErrResourceNotFound):
		return http.StatusNotFound, dto.NewErrorDetail(dto.ErrorCodeResourceNotFound, "Resource not found")
	case errors.Is(err, apperrors.ErrRegNoAlreadyExists):
		return http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeResourceAlreadyExists, "Registration number already exists").WithField("reg_no")
	case errors.Is(err, apperrors.ErrEmailAlreadyExists):
		return http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeResourceAlreadyExists, "Email already exists").WithField("email")
	case errors.Is(err, apperrors.ErrResourceAlreadyExists):
		return http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeResourceAlreadyExists, "Resource already exists")
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrStudentVersionStale):
		return http.StatusConflict, dto.NewErrorDetail(dto.ErrorCodeConflict, "Student record was modified concurrently, please retry")

	// authentication
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeInvalidCredentials, "Incorrect username or password")
	case errors.Is(err, apperrors.ErrTokenExpired):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeExpiredToken, "Token expired")
	case errors.Is(err, apperrors.ErrTokenInvalid), errors.Is(err, apperrors.ErrInvalidFormat):
		return http.StatusUnauthorized, dto.NewErrorDetail(dto.ErrorCodeInvalidToken, "Invalid token")

	// request
	case errors.Is(err, apperrors.ErrValidationFailed), errors.Is(err, apperrors.ErrBadRequest):
		return http.StatusBadRequest, dto.NewErrorDetail(dto.ErrorCodeValidationFailed, messageOf(err, "Validation failed"))
	case errors.Is(err, apperrors.ErrTooManyRequests):
		return http.StatusTooManyRequests, dto.NewErrorDetail(dto.ErrorCodeTooManyRequests, "Too many requests")

	// collaborators
	case errors.Is(err, apperrors.ErrExternalService):
		return http.StatusBadGateway, dto.NewErrorDetail(dto.ErrorCodeExternalServiceError, messageOf(err, "External service failure"))

	default:
		return http.StatusInternalServerError, dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error")
	}
}

// messageOf returns the message of a CustomError, or fallback
func messageOf(err error, fallback string) string {
	var custom *apperrors.CustomError
	if errors.As(err, &custom) && custom.Message != "" {
		return custom.Message
	}
	return fallback
}
