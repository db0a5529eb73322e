package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisr/advisr-backend/internal/config"
	"github.com/advisr/advisr-backend/internal/pkg/cache"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("JWT_SECRET", "bootstrap-secret")
	t.Setenv("SERVER_MODE", "production")
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	return cfg
}

func TestBuildDependencies_WithoutOptionalServices(t *testing.T) {
	cfg := testConfig(t)

	deps, err := BuildDependencies(context.Background(), cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	defer deps.Close()

	assert.IsType(t, cache.NoopStudentCache{}, deps.StudentCache)
	assert.NotNil(t, deps.ChatService)
	assert.NotNil(t, deps.ChatLimiter)

	router := SetupRouter(cfg, deps, zerolog.Nop())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBuildDependencies_UnreachableRedisFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	deps, err := BuildDependencies(context.Background(), cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, cache.NoopStudentCache{}, deps.StudentCache)
}

func TestSetupGenerator(t *testing.T) {
	cfg := testConfig(t)

	gen, err := setupGenerator(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, gen)

	cfg.LLM.APIKey = "key"
	gen, err = setupGenerator(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, gen)
	assert.Equal(t, cfg.LLM.Model, gen.Model())
}
