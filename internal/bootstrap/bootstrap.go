package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	appControllers "github.com/advisr/advisr-backend/internal/app/controllers"
	appMigrations "github.com/advisr/advisr-backend/internal/app/migrations"
	"github.com/advisr/advisr-backend/internal/app/models"
	"github.com/advisr/advisr-backend/internal/app/models/dto"
	"github.com/advisr/advisr-backend/internal/app/progression"
	appRepos "github.com/advisr/advisr-backend/internal/app/repositories"
	appRoutes "github.com/advisr/advisr-backend/internal/app/routes"
	appServices "github.com/advisr/advisr-backend/internal/app/services"
	"github.com/advisr/advisr-backend/internal/config"
	"github.com/advisr/advisr-backend/internal/db"
	appMiddleware "github.com/advisr/advisr-backend/internal/middleware"
	pkgAuth "github.com/advisr/advisr-backend/internal/pkg/auth"
	"github.com/advisr/advisr-backend/internal/pkg/cache"
	"github.com/advisr/advisr-backend/internal/pkg/helpers"
	"github.com/advisr/advisr-backend/internal/pkg/llm"
	"github.com/advisr/advisr-backend/internal/pkg/logger"
	"github.com/advisr/advisr-backend/internal/seed"
)

const serviceName = "advisr-backend"

// Dependencies holds all the application dependencies
type Dependencies struct {
	Repos           *appRepos.Repositories
	StudentCache    cache.StudentCache
	JWTService      *pkgAuth.JWTService
	Engine          *progression.Engine
	AuthService     *appServices.AuthService
	AcademicService *appServices.AcademicService
	ChatService     *appServices.ChatService
	AuthController  *appControllers.AuthController
	UserController  *appControllers.UserController
	ChatController  *appControllers.ChatController
	AuthMiddleware  *appMiddleware.AuthMiddleware
	ChatLimiter     *appMiddleware.StudentRateLimiter
	Logger          zerolog.Logger

	closers []func() error
}

// Close releases resources owned by the dependencies
func (d *Dependencies) Close() {
	for _, closeFn := range d.closers {
		if err := closeFn(); err != nil {
			d.Logger.Warn().Err(err).Msg("Failed to close dependency")
		}
	}
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
// CONFIG_PATH overrides the default configs/config.yaml.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = filepath.Join("configs", "config.yaml")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.ParseLevel(cfg.Logging.Level)
	lgr := logger.Configure(logger.Config{
		Level:   logLevel,
		Pretty:  cfg.Logging.Format == "text",
		Service: serviceName,
	})

	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*pgxpool.Pool, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(ctx, cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	dbPool := database.Pool
	lgr.Info().Msg("Database connection successfully established.")

	migrationsDir := cfg.Database.MigrationsDir
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		dbPool.Close()
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	lgr.Info().Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(dbPool, lgr)
	if err := migrator.MigrateFromDirectory(ctx, migrationsDir); err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		dbPool.Close()
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	return dbPool, nil
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(ctx context.Context, cfg *config.Config, dbPool *pgxpool.Pool, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}
	deps.Repos = appRepos.NewRepositories(dbPool)

	if cfg.Database.SeedDemo {
		if err := seed.CreateDemoStudent(ctx, deps.Repos.StudentRepository, cfg.Database.SeedPassword, lgr); err != nil {
			lgr.Warn().Err(err).Msg("Demo data seeding failed")
		}
	}

	studentCache := setupStudentCache(ctx, cfg, lgr)
	deps.StudentCache = studentCache
	if closer, ok := studentCache.(interface{ Close() error }); ok {
		deps.closers = append(deps.closers, closer.Close)
	}

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenExp: helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, 30*time.Minute),
		TokenIssuer:    cfg.JWT.Issuer,
	})

	duplicates, err := progression.ParseDuplicatePolicy(cfg.Academic.DuplicateSubjectCodes)
	if err != nil {
		return nil, err
	}
	scale := models.NewGradeScale(cfg.Academic.GradeScale, cfg.Academic.FailingGrade)
	deps.Engine = progression.NewEngine(progression.Options{
		Scale:            scale,
		Duplicates:       duplicates,
		RequireAllGrades: cfg.Academic.RequireAllGrades,
	})

	generator, err := setupGenerator(cfg, lgr)
	if err != nil {
		return nil, err
	}

	deps.AuthService = appServices.NewAuthService(deps.Repos.StudentRepository, deps.StudentCache, deps.JWTService, lgr)
	deps.AcademicService = appServices.NewAcademicService(
		deps.Repos.StudentRepository,
		deps.StudentCache,
		deps.Engine,
		cfg.Academic.MaxUpdateAttempts,
		lgr,
	)
	deps.ChatService = appServices.NewChatService(
		generator,
		deps.Repos.AdvisorMessageRepository,
		scale,
		appServices.ChatConfig{
			SystemPrompt:     cfg.LLM.SystemPrompt,
			MaxMessageLength: cfg.Chat.MaxMessageLength,
			HistoryLimit:     cfg.Chat.HistoryLimit,
		},
		lgr,
	)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.AuthService, lgr)
	deps.ChatLimiter = appMiddleware.NewStudentRateLimiter(cfg.Chat.RequestsPerMinute, cfg.Chat.Burst)

	deps.AuthController = appControllers.NewAuthController(deps.AuthService, lgr)
	gradesValidator, err := dto.NewGradesValidator(scale)
	if err != nil {
		return nil, err
	}
	deps.UserController = appControllers.NewUserController(deps.AcademicService, gradesValidator, lgr)
	deps.ChatController = appControllers.NewChatController(deps.ChatService, lgr)

	return deps, nil
}

func setupStudentCache(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) cache.StudentCache {
	if !cfg.Redis.Enabled {
		lgr.Info().Msg("Redis disabled, student cache off")
		return cache.NoopStudentCache{}
	}

	c, err := cache.NewRedisStudentCache(ctx, cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      helpers.ParseDuration(cfg.Redis.TTL, 5*time.Minute),
	})
	if err != nil {
		lgr.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis, student cache disabled")
		return cache.NoopStudentCache{}
	}
	lgr.Info().Str("addr", cfg.Redis.Addr).Msg("Student cache connected")
	return c
}

// setupGenerator returns nil when no API key is configured, which switches the chat to
// canned replies
func setupGenerator(cfg *config.Config, lgr zerolog.Logger) (llm.TextGenerator, error) {
	if cfg.LLM.APIKey == "" {
		lgr.Warn().Msg("LLM API key not set, advisor chat uses canned replies")
		return nil, nil
	}

	client, err := llm.NewOpenAIClient(llm.Config{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		Timeout:   helpers.ParseDuration(cfg.LLM.Timeout, 30*time.Second),
		MaxTokens: cfg.LLM.MaxTokens,
	}, lgr)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(appMiddleware.RequestLogger(lgr))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	appRoutes.SetupSwagger(router)
	appRoutes.SetupRouter(router,
		deps.AuthController,
		deps.UserController,
		deps.ChatController,
		deps.AuthMiddleware,
		deps.ChatLimiter,
	)

	return router
}
