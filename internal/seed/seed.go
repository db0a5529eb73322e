package seed

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	appModels "github.com/advisr/advisr-backend/internal/app/models"
	appRepos "github.com/advisr/advisr-backend/internal/app/repositories"
	"github.com/advisr/advisr-backend/internal/pkg/apperrors"
	"github.com/advisr/advisr-backend/internal/pkg/auth"
)

// Demo account identifiers
const (
	DemoRegNo = "DEMO0001"
	DemoEmail = "demo@advisr.local"
)

func ptr(s string) *string { return &s }

// demoSemesters is a finished first semester with one failed subject carried into the
// second, so that every read endpoint has something to show
func demoSemesters() []appModels.Semester {
	return []appModels.Semester{
		{
			SemesterNumber: 1,
			Subjects: []appModels.Subject{
				{Name: "Intro to Programming", Code: "CS101", Credits: 4, Grade: ptr(appModels.GradeA)},
				{Name: "Calculus I", Code: "MA101", Credits: 4, Grade: ptr(appModels.GradeFail)},
				{Name: "Technical Writing", Code: "HS101", Credits: 2, Grade: ptr(appModels.GradeBPlus)},
			},
		},
		{
			SemesterNumber: 2,
			Subjects: []appModels.Subject{
				{Name: "Calculus I", Code: "MA101", Credits: 4},
				{Name: "Data Structures", Code: "CS201", Credits: 4},
			},
		},
	}
}

// CreateDemoStudent creates the demo student if it does not exist yet.
func CreateDemoStudent(ctx context.Context, repo appRepos.IStudentRepository, password string, lgr zerolog.Logger) error {
	if _, err := repo.GetByRegNo(ctx, DemoRegNo); err == nil {
		lgr.Info().Str("regNo", DemoRegNo).Msg("Demo student already exists, skipping creation")
		return nil
	} else if !errors.Is(err, apperrors.ErrStudentNotFound) {
		lgr.Error().Err(err).Msg("Error checking for demo student")
		return err
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		lgr.Error().Err(err).Msg("Error hashing demo student password")
		return err
	}

	student := &appModels.Student{
		Name:            "Demo Student",
		RegNo:           DemoRegNo,
		Email:           DemoEmail,
		CurrentSemester: 2,
		HashedPassword:  hashedPassword,
		Semesters:       demoSemesters(),
	}
	if err := repo.Create(ctx, student); err != nil {
		if errors.Is(err, apperrors.ErrRegNoAlreadyExists) || errors.Is(err, apperrors.ErrEmailAlreadyExists) {
			lgr.Warn().Err(err).Msg("Demo student was created concurrently")
			return nil
		}
		lgr.Error().Err(err).Msg("Error creating demo student")
		return err
	}

	lgr.Info().Int64("studentID", student.ID).Str("regNo", DemoRegNo).Msg("Demo student created successfully")
	return nil
}
