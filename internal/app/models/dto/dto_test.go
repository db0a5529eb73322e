package dto

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisr/advisr-backend/internal/app/models"
)

func TestGradesValidator(t *testing.T) {
	v, err := NewGradesValidator(models.NewGradeScale(nil, "F"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     CompleteSemesterRequest
		wantErr bool
	}{
		{name: "empty payload", req: CompleteSemesterRequest{}},
		{name: "known grades", req: CompleteSemesterRequest{"CS101": "A+", "MA101": "f"}},
		{name: "unknown grade", req: CompleteSemesterRequest{"CS101": "Z"}, wantErr: true},
		{name: "blank code", req: CompleteSemesterRequest{"": "A"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			if tt.wantErr {
				var verrs validator.ValidationErrors
				assert.True(t, errors.As(err, &verrs))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHandleValidationError(t *testing.T) {
	v, err := NewGradesValidator(models.NewGradeScale(nil, "F"))
	require.NoError(t, err)
	err = v.Validate(CompleteSemesterRequest{"CS101": "Z"})
	require.Error(t, err)

	detail := HandleValidationError(err)
	assert.Equal(t, ErrorCodeValidationFailed, detail.Code)
	assert.Equal(t, "Validation failed", detail.Message)
	list, ok := detail.Details.([]ErrorDetail)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Message, `"Z"`)

	detail = HandleValidationError(errors.New("unexpected EOF"))
	assert.Equal(t, "Invalid request format", detail.Message)
	assert.Equal(t, "unexpected EOF", detail.Details)
}

func TestNewStudentResponse(t *testing.T) {
	assert.Nil(t, NewStudentResponse(nil))

	resp := NewStudentResponse(&models.Student{ID: 3, Name: "Ada", RegNo: "R3", CurrentSemester: 1, HashedPassword: "x"})
	assert.Equal(t, int64(3), resp.ID)
	assert.NotNil(t, resp.Semesters)
}
