package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port        string   `yaml:"port" env:"SERVER_PORT"`
		Mode        string   `yaml:"mode" env:"SERVER_MODE"`
		CORSOrigins []string `yaml:"cors_origins" env:"SERVER_CORS_ORIGINS"`
	} `yaml:"server"`

	Database struct {
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
		MigrationsDir   string `yaml:"migrations_dir" env:"DB_MIGRATIONS_DIR"`
		SeedDemo        bool   `yaml:"seed_demo" env:"DB_SEED_DEMO"`
		SeedPassword    string `yaml:"seed_password" env:"DB_SEED_PASSWORD"`
	} `yaml:"database"`

	JWT struct {
		Secret                string `yaml:"secret" env:"JWT_SECRET"`
		AccessTokenExpiration string `yaml:"access_token_expiration" env:"JWT_ACCESS_TOKEN_EXPIRATION"`
		Issuer                string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled" env:"REDIS_ENABLED"`
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		TTL      string `yaml:"ttl" env:"REDIS_TTL"`
	} `yaml:"redis"`

	LLM struct {
		APIKey       string `yaml:"api_key" env:"LLM_API_KEY"`
		BaseURL      string `yaml:"base_url" env:"LLM_BASE_URL"`
		Model        string `yaml:"model" env:"LLM_MODEL"`
		SystemPrompt string `yaml:"system_prompt" env:"LLM_SYSTEM_PROMPT"`
		Timeout      string `yaml:"timeout" env:"LLM_TIMEOUT"`
		MaxTokens    int    `yaml:"max_tokens" env:"LLM_MAX_TOKENS"`
	} `yaml:"llm"`

	Chat struct {
		RequestsPerMinute int `yaml:"requests_per_minute" env:"CHAT_REQUESTS_PER_MINUTE"`
		Burst             int `yaml:"burst" env:"CHAT_BURST"`
		HistoryLimit      int `yaml:"history_limit" env:"CHAT_HISTORY_LIMIT"`
		MaxMessageLength  int `yaml:"max_message_length" env:"CHAT_MAX_MESSAGE_LENGTH"`
	} `yaml:"chat"`

	Academic struct {
		GradeScale            []string `yaml:"grade_scale" env:"ACADEMIC_GRADE_SCALE"`
		FailingGrade          string   `yaml:"failing_grade" env:"ACADEMIC_FAILING_GRADE"`
		DuplicateSubjectCodes string   `yaml:"duplicate_subject_codes" env:"ACADEMIC_DUPLICATE_SUBJECT_CODES"`
		RequireAllGrades      bool     `yaml:"require_all_grades" env:"ACADEMIC_REQUIRE_ALL_GRADES"`
		MaxUpdateAttempts     int      `yaml:"max_update_attempts" env:"ACADEMIC_MAX_UPDATE_ATTEMPTS"`
	} `yaml:"academic"`
}

// LoadConfig loads configuration from a file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Server.Port = "8000"
	config.Server.Mode = "development"
	config.Server.CORSOrigins = []string{
		"http://localhost",
		"http://localhost:3000",
		"http://localhost:5173",
		"http://localhost:5174",
	}

	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "advisr"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 2
	config.Database.MaxOpenConns = 10
	config.Database.ConnMaxLifetime = "1h"
	config.Database.MigrationsDir = "migrations"

	config.JWT.AccessTokenExpiration = "30m"
	config.JWT.Issuer = "advisr"

	config.Logging.Level = "info"
	config.Logging.Format = "json"

	config.Redis.Enabled = false
	config.Redis.Addr = "localhost:6379"
	config.Redis.TTL = "5m"

	config.LLM.Model = "gpt-4o-mini"
	config.LLM.Timeout = "30s"
	config.LLM.MaxTokens = 512
	config.LLM.SystemPrompt = "You are Advisr, an academic advisor for university students. " +
		"Answer using the student's record below. Be concise and practical."

	config.Chat.RequestsPerMinute = 20
	config.Chat.Burst = 5
	config.Chat.HistoryLimit = 20
	config.Chat.MaxMessageLength = 2000

	config.Academic.GradeScale = []string{"O", "A+", "A", "B+", "B", "C", "F"}
	config.Academic.FailingGrade = "F"
	config.Academic.DuplicateSubjectCodes = "allow"
	config.Academic.MaxUpdateAttempts = 3
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if _, err := time.ParseDuration(config.JWT.AccessTokenExpiration); err != nil {
		return fmt.Errorf("invalid JWT access token expiration format: %w", err)
	}

	if _, err := time.ParseDuration(config.Database.ConnMaxLifetime); err != nil {
		return fmt.Errorf("invalid database connection max lifetime: %w", err)
	}

	if config.Database.SeedDemo && len(config.Database.SeedPassword) < 8 {
		return fmt.Errorf("database.seed_password must be at least 8 characters when seeding")
	}

	if config.Redis.Enabled && config.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}

	switch strings.ToLower(config.Academic.DuplicateSubjectCodes) {
	case "", "allow", "reject":
	default:
		return fmt.Errorf("academic.duplicate_subject_codes must be allow or reject, got %q", config.Academic.DuplicateSubjectCodes)
	}

	if config.Academic.MaxUpdateAttempts < 1 {
		return fmt.Errorf("academic.max_update_attempts must be at least 1")
	}

	if config.Chat.RequestsPerMinute < 0 || config.Chat.Burst < 0 {
		return fmt.Errorf("chat rate limits cannot be negative")
	}

	return nil
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Server.Mode) == "production"
}
