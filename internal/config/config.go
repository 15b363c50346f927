package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	// client
	ServerURL  string
	AuthorName string

	// dev server
	MockMode           string
	RateLimitPerMinute int
	MaxClients         int
	HistoryLimit       int
}

// Load reads .env (if present) and the process environment. logger may be
// nil; it only reports which defaults were used.
func Load(logger *zap.Logger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("config")

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, relying on system environment variables")
	} else {
		logger.Debug("loaded .env file")
	}

	cfg := &Config{
		Port:       getEnv(logger, "PORT", "8080"),
		Env:        getEnv(logger, "APP_ENV", "development"),
		LogLevel:   getEnv(logger, "LOG_LEVEL", "info"),
		ServerURL:  getEnv(logger, "CHAT_SERVER_URL", "ws://localhost:8080/ws"),
		AuthorName: getEnv(logger, "CHAT_AUTHOR_NAME", "Anonymous"),
		MockMode:   strings.ToLower(getEnv(logger, "MOCK_MODE", "")),
	}

	var err error
	if cfg.RateLimitPerMinute, err = getIntEnv(logger, "RATE_LIMIT_PER_MINUTE", 20); err != nil {
		return nil, err
	}
	if cfg.MaxClients, err = getIntEnv(logger, "MAX_CLIENTS", 50); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit, err = getIntEnv(logger, "HISTORY_LIMIT", 1000); err != nil {
		return nil, err
	}

	if strings.Contains(cfg.Port, " ") {
		return nil, fmt.Errorf("invalid PORT value: %q", cfg.Port)
	}

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("port", cfg.Port),
		zap.String("server_url", cfg.ServerURL),
	)
	return cfg, nil
}

// Addr is the listen address for the dev server. PORT may already be a full
// address such as "127.0.0.1:8080".
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getEnv(logger *zap.Logger, key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	if !exists || value == "" {
		logger.Debug("variable not set, using default", zap.String("key", key), zap.String("default", defaultValue))
		return defaultValue
	}
	return value
}

func getIntEnv(logger *zap.Logger, key string, defaultValue int) (int, error) {
	raw := getEnv(logger, key, "")
	if raw == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 1 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}
