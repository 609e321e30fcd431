package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Port    int
	DataDir string
	Version string

	// Model
	ModelPath     string
	ModelURL      string
	ModelTimeout  time.Duration
	ModelColumns  []string
	ModelAccuracy float64

	// Form assets
	CatalogPath string
	HeaderImage string

	// Prediction cache
	RedisAddr string
	RedisPass string
	RedisDB   int
	CacheTTL  time.Duration

	// Prediction history
	HistoryDSN      string
	HistoryDisabled bool
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Port:         8080,
		DataDir:      "./data",
		Version:      "dev",
		ModelPath:    "Random_Forest_model.json",
		ModelTimeout: 10 * time.Second,
		CacheTTL:     10 * time.Minute,
	}
}

// Load reads .env files (if present) and the process environment on top of Default.
func Load() (Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, so tests need not touch
// the process environment.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	if v := getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = n
	}
	if v := getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := getenv("MODEL_PATH"); v != "" {
		cfg.ModelPath = v
	}
	cfg.ModelURL = strings.TrimRight(getenv("MODEL_URL"), "/")
	if v := getenv("MODEL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid MODEL_TIMEOUT %q: %w", v, err)
		}
		cfg.ModelTimeout = d
	}
	if v := getenv("MODEL_COLUMNS"); v != "" {
		for _, col := range strings.Split(v, ",") {
			if col = strings.TrimSpace(col); col != "" {
				cfg.ModelColumns = append(cfg.ModelColumns, col)
			}
		}
	}
	if v := getenv("MODEL_ACCURACY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid MODEL_ACCURACY %q: %w", v, err)
		}
		cfg.ModelAccuracy = f
	}

	cfg.CatalogPath = getenv("CATALOG_PATH")
	cfg.HeaderImage = getenv("HEADER_IMAGE")

	cfg.RedisAddr = getenv("REDIS_ADDR")
	cfg.RedisPass = getenv("REDIS_PASS")
	if v := getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		cfg.RedisDB = n
	}
	if v := getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid CACHE_TTL %q: %w", v, err)
		}
		cfg.CacheTTL = d
	}

	cfg.HistoryDSN = getenv("HISTORY_DSN")
	cfg.HistoryDisabled = strings.EqualFold(getenv("HISTORY_DISABLED"), "true")

	return cfg, cfg.Validate()
}

// Validate checks values that cannot be fixed up with a default
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.ModelTimeout <= 0 {
		return fmt.Errorf("model timeout must be positive, got %s", c.ModelTimeout)
	}
	if c.ModelAccuracy < 0 || c.ModelAccuracy > 1 {
		return fmt.Errorf("model accuracy must be between 0 and 1, got %g", c.ModelAccuracy)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache TTL must not be negative, got %s", c.CacheTTL)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("redis DB must not be negative, got %d", c.RedisDB)
	}
	if c.ModelPath == "" && c.ModelURL == "" {
		return fmt.Errorf("either a model path or a model URL is required")
	}
	return nil
}

// HistoryDriver returns the sqlx driver name and DSN for the history store
func (c Config) HistoryDriver() (driver, dsn string) {
	if strings.HasPrefix(c.HistoryDSN, "postgres://") || strings.HasPrefix(c.HistoryDSN, "postgresql://") {
		return "postgres", c.HistoryDSN
	}
	if c.HistoryDSN != "" {
		return "sqlite3", c.HistoryDSN
	}
	return "sqlite3", filepath.Join(c.DataDir, "predictions.db")
}
