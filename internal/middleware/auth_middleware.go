package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/advisr/advisr-backend/internal/app/models"
	"github.com/advisr/advisr-backend/internal/app/models/dto"
	"github.com/advisr/advisr-backend/internal/pkg/apperrors"
	"github.com/advisr/advisr-backend/internal/pkg/auth"
)

// Context keys set by JWTAuth
const (
	ContextKeyStudent   = "student"
	ContextKeyStudentID = "studentID"
)

// IdentityResolver turns an access token into the caller's current student record
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (*models.Student, error)
}

// AuthMiddleware for authentication
type AuthMiddleware struct {
	resolver IdentityResolver
	logger   zerolog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(resolver IdentityResolver, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		logger:   logger,
	}
}

// JWTAuth resolves the bearer token into a student and stores it on the context
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required").
				WithDetails("Authorization header missing")
			abortUnauthorized(c, errorDetail)
			return
		}

		tokenString, err := auth.ExtractBearerToken(authHeader)
		if err != nil {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required").
				WithDetails("Invalid token format")
			abortUnauthorized(c, errorDetail)
			return
		}

		student, err := m.resolver.ResolveIdentity(c.Request.Context(), tokenString)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrTokenExpired):
				abortUnauthorized(c, dto.NewErrorDetail(dto.ErrorCodeExpiredToken, "Authentication failed").
					WithDetails("Token has expired"))
			case errors.Is(err, apperrors.ErrInvalidFormat):
				abortUnauthorized(c, dto.NewErrorDetail(dto.ErrorCodeInvalidToken, "Authentication failed").
					WithDetails("Invalid token format"))
			case errors.Is(err, apperrors.ErrTokenInvalid):
				abortUnauthorized(c, dto.NewErrorDetail(dto.ErrorCodeInvalidToken, "Authentication failed").
					WithDetails("Invalid token"))
			default:
				m.logger.Error().Err(err).Msg("Identity resolution failed")
				HandleAPIError(c, err)
				c.Abort()
			}
			return
		}

		c.Set(ContextKeyStudent, student)
		c.Set(ContextKeyStudentID, student.ID)

		c.Next()
	}
}

// CurrentStudent returns the student stored by JWTAuth
func CurrentStudent(c *gin.Context) (*models.Student, bool) {
	value, exists := c.Get(ContextKeyStudent)
	if !exists {
		return nil, false
	}
	student, ok := value.(*models.Student)
	return student, ok && student != nil
}

func abortUnauthorized(c *gin.Context, detail *dto.ErrorDetail) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(detail))
}
