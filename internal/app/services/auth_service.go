package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/advisr/advisr-backend/internal/app/models"
	"github.com/advisr/advisr-backend/internal/app/models/dto"
	"github.com/advisr/advisr-backend/internal/app/repositories"
	"github.com/advisr/advisr-backend/internal/pkg/apperrors"
	"github.com/advisr/advisr-backend/internal/pkg/auth"
	"github.com/advisr/advisr-backend/internal/pkg/cache"
)

const minPasswordLength = 8

// AuthService handles registration, login and token to student resolution
type AuthService struct {
	studentRepo repositories.IStudentRepository
	cache       cache.StudentCache
	jwtService  *auth.JWTService
	logger      zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	studentRepo repositories.IStudentRepository,
	studentCache cache.StudentCache,
	jwtService *auth.JWTService,
	logger zerolog.Logger,
) *AuthService {
	if studentCache == nil {
		studentCache = cache.NoopStudentCache{}
	}
	return &AuthService{
		studentRepo: studentRepo,
		cache:       studentCache,
		jwtService:  jwtService,
		logger:      logger,
	}
}

// validatePassword checks if password meets requirements
func (s *AuthService) validatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return apperrors.NewValidationError("password cannot be blank", map[string]interface{}{"field": "password"})
	}
	if len(password) < minPasswordLength {
		return apperrors.NewValidationError(
			fmt.Sprintf("password must be at least %d characters long", minPasswordLength),
			map[string]interface{}{"field": "password"},
		)
	}
	return nil
}

// Register creates a student account. The record starts with no semesters, in the
// requested semester or semester 1.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*models.Student, error) {
	name := strings.TrimSpace(req.Name)
	regNo := strings.TrimSpace(req.RegNo)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if name == "" || regNo == "" || email == "" {
		return nil, apperrors.NewValidationError("name, reg_no and email are required", nil)
	}
	if err := s.validatePassword(req.Password); err != nil {
		return nil, err
	}

	currentSemester := models.InitialSemester
	if req.CurrentSemester != nil {
		if *req.CurrentSemester < models.InitialSemester {
			return nil, apperrors.NewValidationError("current_semester must be at least 1", map[string]interface{}{"field": "current_semester"})
		}
		currentSemester = *req.CurrentSemester
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	student := &models.Student{
		Name:            name,
		RegNo:           regNo,
		Email:           email,
		CurrentSemester: currentSemester,
		HashedPassword:  hashed,
		Semesters:       []models.Semester{},
	}

	if err := s.studentRepo.Create(ctx, student); err != nil {
		if errors.Is(err, apperrors.ErrRegNoAlreadyExists) || errors.Is(err, apperrors.ErrEmailAlreadyExists) {
			s.logger.Warn().Str("regNo", regNo).Msg("Registration rejected, student already exists")
			return nil, err
		}
		return nil, fmt.Errorf("student creation error: %w", err)
	}

	s.logger.Info().Int64("studentID", student.ID).Str("regNo", regNo).Msg("Student registered")
	return student, nil
}

// Login checks the password of the student matching username (a registration number
// or an email) and issues an access token
func (s *AuthService) Login(ctx context.Context, username, password string) (*dto.TokenResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	// emails are stored lower-cased
	if strings.Contains(username, "@") {
		username = strings.ToLower(username)
	}

	student, err := s.studentRepo.GetByRegNoOrEmail(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrStudentNotFound) {
			s.logger.Debug().Str("username", username).Msg("Login for unknown student")
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error retrieving student: %w", err)
	}

	if !auth.CheckPassword(student.HashedPassword, password) {
		s.logger.Debug().Int64("studentID", student.ID).Msg("Login with wrong password")
		return nil, apperrors.ErrInvalidCredentials
	}

	token, expiresIn, err := s.jwtService.GenerateAccessToken(student.ID, student.RegNo)
	if err != nil {
		return nil, fmt.Errorf("error generating access token: %w", err)
	}

	s.logger.Info().Int64("studentID", student.ID).Msg("Student logged in")
	return &dto.TokenResponse{
		AccessToken: token,
		TokenType:   auth.TokenTypeBearer,
		ExpiresIn:   expiresIn,
	}, nil
}

// ResolveIdentity validates an access token and returns the current record of its
// student, served from the cache when possible
func (s *AuthService) ResolveIdentity(ctx context.Context, token string) (*models.Student, error) {
	claims, err := s.jwtService.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	student, err := s.cache.Get(ctx, claims.StudentID)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Int64("studentID", claims.StudentID).Msg("Student cache read failed")
		}

		student, err = s.studentRepo.GetByID(ctx, claims.StudentID)
		if err != nil {
			if errors.Is(err, apperrors.ErrStudentNotFound) {
				return nil, fmt.Errorf("%w: student no longer exists", apperrors.ErrTokenInvalid)
			}
			return nil, fmt.Errorf("error resolving student: %w", err)
		}

		if err := s.cache.Set(ctx, student); err != nil {
			s.logger.Warn().Err(err).Int64("studentID", student.ID).Msg("Student cache write failed")
		}
	}

	if student.RegNo != claims.RegNo {
		return nil, fmt.Errorf("%w: subject does not match student", apperrors.ErrTokenInvalid)
	}

	return student, nil
}
