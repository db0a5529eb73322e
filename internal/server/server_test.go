package server

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/advisr/advisr-backend/internal/config"
)

func newTestServer(port string) *Server {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Server.Port = port
	return &Server{config: cfg, router: gin.New(), logger: zerolog.Nop()}
}

func TestRun_StopsWhenContextCancelled(t *testing.T) {
	s := newTestServer("0")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_ReturnsListenError(t *testing.T) {
	s := newTestServer("not-a-port")

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error starting server")
}

func TestShutdown_WithoutListener(t *testing.T) {
	s := newTestServer("0")
	assert.NoError(t, s.Shutdown(context.Background()))
}
