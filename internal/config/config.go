// Package config loads service settings from the environment, after reading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kdimtricp/crackscan/internal/database"
	"github.com/kdimtricp/crackscan/internal/detection"
	"github.com/kdimtricp/crackscan/internal/inference"
	"github.com/kdimtricp/crackscan/internal/logging"
)

type Config struct {
	Port           string
	MaxUploadSize  int64
	UploadDir      string
	Database       database.Config
	MigrationsPath string

	Inference        inference.Config
	NoveltyThreshold float64

	CORSOrigins []string
	Log         logging.Config
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a validated Config from the process environment only.
func FromEnv() (*Config, error) {
	var (
		cfg Config
		err error
	)
	cfg.Port = getEnv("PORT", "8080")
	cfg.UploadDir = getEnv("UPLOAD_DIR", "./uploads")
	cfg.MigrationsPath = os.Getenv("MIGRATIONS_PATH")

	if cfg.MaxUploadSize, err = getInt64("MAX_UPLOAD_SIZE", 104857600); err != nil {
		return nil, err
	}

	cfg.Database.Type = getEnv("DB_TYPE", database.TypeSQLite)
	if cfg.Database.Type == database.TypePostgres {
		cfg.Database.Host = getEnv("DB_HOST", "localhost")
		port, err := getInt64("DB_PORT", 5432)
		if err != nil {
			return nil, err
		}
		cfg.Database.Port = int(port)
		cfg.Database.User = getEnv("DB_USER", "crackscan")
		cfg.Database.Password = getEnv("DB_PASSWORD", "crackscan_dev")
		cfg.Database.Name = getEnv("DB_NAME", "crackscan")
	} else {
		cfg.Database.SQLitePath = getEnv("DB_PATH", "./crackscan.db")
	}

	cfg.Inference.Mode = getEnv("INFERENCE_MODE", inference.ModeLocal)
	cfg.Inference.URL = os.Getenv("INFERENCE_URL")
	if cfg.Inference.Timeout, err = getDuration("INFERENCE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	level, err := getInt64("DETECTOR_THRESHOLD", 80)
	if err != nil {
		return nil, err
	}
	if level < 0 || level > 255 {
		return nil, fmt.Errorf("DETECTOR_THRESHOLD must be within 0-255, got %d", level)
	}
	cfg.Inference.DarkThreshold = uint8(level)
	minArea, err := getInt64("DETECTOR_MIN_AREA", 50)
	if err != nil {
		return nil, err
	}
	cfg.Inference.MinArea = int(minArea)

	if cfg.NoveltyThreshold, err = getFloat("NOVELTY_IOU_THRESHOLD", detection.DefaultNoveltyThreshold); err != nil {
		return nil, err
	}

	cfg.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", logging.FormatJSON)
	cfg.Log.File = os.Getenv("LOG_FILE")
	maxSize, err := getInt64("LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return nil, err
	}
	cfg.Log.MaxSizeMB = int(maxSize)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT %q: %w", c.Port, err)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize)
	}
	switch c.Database.Type {
	case database.TypeSQLite, database.TypePostgres:
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.Database.Type)
	}
	switch c.Inference.Mode {
	case inference.ModeLocal:
	case inference.ModeRemote:
		if c.Inference.URL == "" {
			return errors.New("INFERENCE_URL is required when INFERENCE_MODE=remote")
		}
	default:
		return fmt.Errorf("unsupported INFERENCE_MODE %q", c.Inference.Mode)
	}
	if c.Inference.Timeout <= 0 {
		return fmt.Errorf("INFERENCE_TIMEOUT must be positive, got %s", c.Inference.Timeout)
	}
	if c.Inference.MinArea < 0 {
		return fmt.Errorf("DETECTOR_MIN_AREA must not be negative, got %d", c.Inference.MinArea)
	}
	if c.NoveltyThreshold <= 0 || c.NoveltyThreshold > 1 {
		return fmt.Errorf("NOVELTY_IOU_THRESHOLD must be within (0, 1], got %v", c.NoveltyThreshold)
	}
	switch c.Log.Format {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		return fmt.Errorf("unsupported LOG_FORMAT %q", c.Log.Format)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
