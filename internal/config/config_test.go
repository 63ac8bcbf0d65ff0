package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kdimtricp/crackscan/internal/database"
	"github.com/kdimtricp/crackscan/internal/inference"
	"github.com/kdimtricp/crackscan/internal/logging"
)

var allKeys = []string{
	"PORT", "MAX_UPLOAD_SIZE", "UPLOAD_DIR", "DB_TYPE", "DB_PATH", "DB_HOST",
	"DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "MIGRATIONS_PATH",
	"INFERENCE_MODE", "INFERENCE_URL", "INFERENCE_TIMEOUT",
	"NOVELTY_IOU_THRESHOLD", "DETECTOR_THRESHOLD", "DETECTOR_MIN_AREA",
	"CORS_ORIGINS", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE", "LOG_MAX_SIZE_MB",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	want := &Config{
		Port:          "8080",
		MaxUploadSize: 104857600,
		UploadDir:     "./uploads",
		Database:      database.Config{Type: database.TypeSQLite, SQLitePath: "./crackscan.db"},
		Inference: inference.Config{
			Mode:          inference.ModeLocal,
			Timeout:       30 * time.Second,
			DarkThreshold: 80,
			MinArea:       50,
		},
		NoveltyThreshold: 0.5,
		Log:              logging.Config{Level: "info", Format: logging.FormatJSON, MaxSizeMB: 100},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("INFERENCE_MODE", "remote")
	t.Setenv("INFERENCE_URL", "http://model:9000")
	t.Setenv("INFERENCE_TIMEOUT", "5s")
	t.Setenv("NOVELTY_IOU_THRESHOLD", "0.3")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.Database.Host != "db" || cfg.Database.Port != 6543 || cfg.Database.User != "crackscan" {
		t.Errorf("unexpected database config: %+v", cfg.Database)
	}
	if cfg.Inference.URL != "http://model:9000" || cfg.Inference.Timeout != 5*time.Second {
		t.Errorf("unexpected inference config: %+v", cfg.Inference)
	}
	if cfg.NoveltyThreshold != 0.3 {
		t.Errorf("NoveltyThreshold = %v", cfg.NoveltyThreshold)
	}
	if diff := cmp.Diff([]string{"http://a.test", "http://b.test"}, cfg.CORSOrigins); diff != "" {
		t.Errorf("CORSOrigins mismatch (-want +got):\n%s", diff)
	}
}

func TestFromEnvRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non numeric port", map[string]string{"PORT": "http"}},
		{"zero upload size", map[string]string{"MAX_UPLOAD_SIZE": "0"}},
		{"unknown db", map[string]string{"DB_TYPE": "mysql"}},
		{"remote without url", map[string]string{"INFERENCE_MODE": "remote"}},
		{"unknown mode", map[string]string{"INFERENCE_MODE": "gpu"}},
		{"bad timeout", map[string]string{"INFERENCE_TIMEOUT": "soon"}},
		{"threshold above one", map[string]string{"NOVELTY_IOU_THRESHOLD": "1.5"}},
		{"threshold zero", map[string]string{"NOVELTY_IOU_THRESHOLD": "0"}},
		{"detector level too high", map[string]string{"DETECTOR_THRESHOLD": "300"}},
		{"negative min area", map[string]string{"DETECTOR_MIN_AREA": "-1"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := FromEnv(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
