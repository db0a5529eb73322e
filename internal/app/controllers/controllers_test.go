package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisr/advisr-backend/internal/app/controllers"
	"github.com/advisr/advisr-backend/internal/app/models"
	"github.com/advisr/advisr-backend/internal/app/models/dto"
	"github.com/advisr/advisr-backend/internal/app/progression"
	"github.com/advisr/advisr-backend/internal/app/repositories/repotest"
	"github.com/advisr/advisr-backend/internal/app/routes"
	"github.com/advisr/advisr-backend/internal/app/services"
	"github.com/advisr/advisr-backend/internal/middleware"
	"github.com/advisr/advisr-backend/internal/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testApp struct {
	router   *gin.Engine
	students *repotest.StudentStore
	messages *repotest.MessageStore
}

func newTestApp(t *testing.T, chatRPM int) *testApp {
	t.Helper()

	students := repotest.NewStudentStore()
	messages := repotest.NewMessageStore()
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SecretKey:      "controller-secret",
		AccessTokenExp: time.Minute,
		TokenIssuer:    "advisr-test",
	})
	scale := models.NewGradeScale(models.DefaultGradeScale, models.GradeFail)
	engine := progression.NewEngine(progression.Options{Scale: scale, Duplicates: progression.DuplicateReject})
	lgr := zerolog.Nop()

	authService := services.NewAuthService(students, nil, jwtService, lgr)
	academicService := services.NewAcademicService(students, nil, engine, 3, lgr)
	chatService := services.NewChatService(nil, messages, scale, services.ChatConfig{MaxMessageLength: 200}, lgr)

	gradesValidator, err := dto.NewGradesValidator(scale)
	require.NoError(t, err)

	router := gin.New()
	routes.SetupRouter(router,
		controllers.NewAuthController(authService, lgr),
		controllers.NewUserController(academicService, gradesValidator, lgr),
		controllers.NewChatController(chatService, lgr),
		middleware.NewAuthMiddleware(authService, lgr),
		middleware.NewStudentRateLimiter(chatRPM, 1),
	)

	return &testApp{router: router, students: students, messages: messages}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) register(t *testing.T, regNo, email string) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/register", "", map[string]interface{}{
		"name":     "Grace Hopper",
		"reg_no":   regNo,
		"email":    email,
		"password": "navy-cobol",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (a *testApp) token(t *testing.T, username string) string {
	t.Helper()
	form := url.Values{"username": {username}, "password": {"navy-cobol"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var tok dto.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, auth.TokenTypeBearer, tok.TokenType)
	return tok.AccessToken
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *dto.ErrorDetail `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) *envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if into != nil {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
	return &env
}

func TestRegisterAndProfile(t *testing.T) {
	app := newTestApp(t, 0)
	app.register(t, "R-100", "grace@example.com")

	tok := app.token(t, "R-100")
	w := app.do(t, http.MethodGet, "/users/me", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var profile dto.StudentResponse
	decode(t, w, &profile)
	assert.Equal(t, "R-100", profile.RegNo)
	assert.Equal(t, 1, profile.CurrentSemester)
	assert.Empty(t, profile.Semesters)
	assert.NotContains(t, w.Body.String(), "hashed_password")
}

func TestRegister_Duplicate(t *testing.T) {
	app := newTestApp(t, 0)
	app.register(t, "R-1", "a@example.com")

	w := app.do(t, http.MethodPost, "/register", "", map[string]interface{}{
		"name": "Other", "reg_no": "R-1", "email": "b@example.com", "password": "navy-cobol",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, dto.ErrorCodeResourceAlreadyExists, env.Error.Code)
	assert.Equal(t, "reg_no", env.Error.Field)
}

func TestRegister_InvalidPayload(t *testing.T) {
	app := newTestApp(t, 0)
	w := app.do(t, http.MethodPost, "/register", "", map[string]interface{}{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToken_EmailAndBadPassword(t *testing.T) {
	app := newTestApp(t, 0)
	app.register(t, "R-2", "Mixed@Example.com")

	app.token(t, "MIXED@example.com")

	form := url.Values{"username": {"R-2"}, "password": {"wrong-password"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t, 0)

	for _, path := range []string{"/users/me", "/users/me/subjects", "/users/me/history", "/chat/history"} {
		w := app.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w := app.do(t, http.MethodGet, "/users/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCompleteSemester_ConcurrentCompletionConflicts(t *testing.T) {
	app := newTestApp(t, 0)
	app.register(t, "R-9", "r9@example.com")
	tok := app.token(t, "R-9")

	w := app.do(t, http.MethodPost, "/users/me/subjects", tok, dto.AddSubjectRequest{Name: "Intro to CS", Code: "CS101", Credits: 4})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	st, err := app.students.GetByRegNo(context.Background(), "R-9")
	require.NoError(t, err)

	// another request finishes semester 1 while this one is saving
	raced := false
	app.students.BeforeSave = func(int) {
		if raced {
			return
		}
		raced = true
		app.students.Mutate(st.ID, func(s *models.Student) {
			grade := "A"
			s.Semesters[0].Subjects[0].Grade = &grade
			s.CurrentSemester = 2
		})
	}

	w = app.do(t, http.MethodPost, "/users/me/complete-semester", tok, map[string]string{"CS101": "F"})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, dto.ErrorCodeConflict, decode(t, w, nil).Error.Code)

	// nothing was carried into semester 2
	w = app.do(t, http.MethodGet, "/users/me/subjects", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var subjects []models.Subject
	decode(t, w, &subjects)
	assert.Empty(t, subjects)
}

func TestSemesterLifecycle(t *testing.T) {
	app := newTestApp(t, 0)
	app.register(t, "R-3", "r3@example.com")
	tok := app.token(t, "R-3")

	w := app.do(t, http.MethodPost, "/users/me/complete-semester", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrorCodeInvalidSemesterState, decode(t, w, nil).Error.Code)

	for _, sub := range []dto.AddSubjectRequest{
		{Name: "Intro to CS", Code: "CS101", Credits: 4},
		{Name: "Calculus", Code: "MA101", Credits: 3},
	} {
		w = app.do(t, http.MethodPost, "/users/me/subjects", tok, sub)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = app.do(t, http.MethodPost, "/users/me/subjects", tok, dto.AddSubjectRequest{Name: "Again", Code: "CS101", Credits: 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrorCodeDuplicateSubject, decode(t, w, nil).Error.Code)

	w = app.do(t, http.MethodGet, "/users/me/subjects", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var subjects []models.Subject
	decode(t, w, &subjects)
	assert.Len(t, subjects, 2)

	w = app.do(t, http.MethodPost, "/users/me/complete-semester", tok, map[string]string{"CS101": "Z"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/users/me/complete-semester", tok, map[string]string{"CS101": "a", "MA101": "F"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result dto.CompleteSemesterResponse
	decode(t, w, &result)
	assert.Equal(t, 1, result.CompletedSemester)
	assert.Equal(t, 2, result.NextSemester)
	assert.Equal(t, 1, result.FailedCarriedForward)

	w = app.do(t, http.MethodGet, "/users/me/subjects", tok, nil)
	subjects = nil
	decode(t, w, &subjects)
	require.Len(t, subjects, 1)
	assert.Equal(t, "MA101", subjects[0].Code)
	assert.Nil(t, subjects[0].Grade)

	w = app.do(t, http.MethodGet, "/users/me/history?sort=number", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.Semester
	decode(t, w, &history)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].SemesterNumber)
	require.NotNil(t, history[0].Subjects[0].Grade)
	assert.Equal(t, "A", *history[0].Subjects[0].Grade)

	w = app.do(t, http.MethodGet, "/users/me/history?sort=name", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_CannedRepliesAndHistory(t *testing.T) {
	app := newTestApp(t, 0)
	app.register(t, "R-4", "r4@example.com")
	tok := app.token(t, "R-4")

	w := app.do(t, http.MethodPost, "/chat", tok, dto.ChatRequest{Message: "hello there"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var reply dto.ChatResponse
	decode(t, w, &reply)
	assert.Equal(t, "Hello Grace Hopper! How can I help you today?", reply.Response)

	w = app.do(t, http.MethodPost, "/chat", tok, dto.ChatRequest{Message: "Which semester am I in?"})
	decode(t, w, &reply)
	assert.Equal(t, "You are currently in semester 1.", reply.Response)

	w = app.do(t, http.MethodPost, "/chat", tok, dto.ChatRequest{Message: strings.Repeat("x", 201)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodGet, "/chat/history?limit=1", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []dto.AdvisorMessageResponse
	decode(t, w, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "Which semester am I in?", history[0].Question)

	w = app.do(t, http.MethodGet, "/chat/history?limit=500", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_RateLimited(t *testing.T) {
	app := newTestApp(t, 1)
	app.register(t, "R-5", "r5@example.com")
	tok := app.token(t, "R-5")

	w := app.do(t, http.MethodPost, "/chat", tok, dto.ChatRequest{Message: "hi"})
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodPost, "/chat", tok, dto.ChatRequest{Message: "hi"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = app.do(t, http.MethodGet, "/chat/history", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
