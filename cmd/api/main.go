package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/advisr/advisr-backend/internal/pkg/logger"
	"github.com/advisr/advisr-backend/internal/server"
)

// @title Advisr API
// @version 1.0
// @description Student records and academic advisory API

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8000
// @BasePath /
// @schemes http https

// @securityDefinitions.oauth2.password OAuth2Password
// @tokenUrl /token

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT access token obtained from /token

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx)
	if err != nil {
		// setup functions log the details
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		stop()
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}
