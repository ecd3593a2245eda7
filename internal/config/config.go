// Package config provides configuration for the chatbot platform.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

// Config holds the platform configuration.
type Config struct {
	// Server settings
	HTTPPort int
	RPCPort  int

	// Store
	StoreDriver string
	DatabaseURL string

	// Completion backend
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	BackendMode       string
	BackendRatePerSec float64
	BackendTimeout    time.Duration
	DefaultModel      string

	// Runs
	RunMode         domain.RunMode
	PollInterval    time.Duration
	PollMaxAttempts int
	StreamTimeout   time.Duration

	// Auth and embedding
	JWTSecret      string
	FrameAncestors []string

	// Logging
	LogLevel string
}

// Load reads configuration from the environment, an optional .env file and an
// optional config file named by CONFIG_FILE.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("RPC_PORT", 8081)
	v.SetDefault("STORE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "file:chatbot.db?mode=rwc&_busy_timeout=5000&_journal_mode=WAL")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("BACKEND_MODE", "REAL")
	v.SetDefault("BACKEND_RATE_PER_SEC", 0)
	v.SetDefault("BACKEND_TIMEOUT_MS", 60000)
	v.SetDefault("DEFAULT_MODEL", "gpt-4-turbo-preview")
	v.SetDefault("RUN_MODE", string(domain.RunModePolling))
	v.SetDefault("POLL_INTERVAL_MS", 1000)
	v.SetDefault("POLL_MAX_ATTEMPTS", 30)
	v.SetDefault("STREAM_TIMEOUT_MS", 120000)
	v.SetDefault("FRAME_ANCESTORS", "*")
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		HTTPPort:          v.GetInt("HTTP_PORT"),
		RPCPort:           v.GetInt("RPC_PORT"),
		StoreDriver:       strings.ToLower(v.GetString("STORE_DRIVER")),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		OpenAIAPIKey:      v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:     v.GetString("OPENAI_BASE_URL"),
		BackendMode:       strings.ToUpper(v.GetString("BACKEND_MODE")),
		BackendRatePerSec: v.GetFloat64("BACKEND_RATE_PER_SEC"),
		BackendTimeout:    millis(v, "BACKEND_TIMEOUT_MS"),
		DefaultModel:      v.GetString("DEFAULT_MODEL"),
		RunMode:           domain.ParseRunMode(strings.ToLower(v.GetString("RUN_MODE"))),
		PollInterval:      millis(v, "POLL_INTERVAL_MS"),
		PollMaxAttempts:   v.GetInt("POLL_MAX_ATTEMPTS"),
		StreamTimeout:     millis(v, "STREAM_TIMEOUT_MS"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		FrameAncestors:    strings.Fields(v.GetString("FRAME_ANCESTORS")),
		LogLevel:          v.GetString("LOG_LEVEL"),
	}
	return cfg, nil
}

func millis(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Millisecond
}
