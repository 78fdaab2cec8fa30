package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults with explicit database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/db")
		t.Setenv("KAFKA_BROKERS", "")
		t.Setenv("ALLOWED_ORIGINS", "")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Port != "8080" {
			t.Errorf("expected default port 8080, got %s", cfg.Port)
		}
		if cfg.LogLevel != slog.LevelInfo {
			t.Errorf("expected info level, got %v", cfg.LogLevel)
		}
		if cfg.Kafka.Enabled() {
			t.Error("kafka should be disabled without brokers")
		}
		if cfg.ConnMaxLifetime != 30*time.Minute {
			t.Errorf("unexpected conn lifetime %v", cfg.ConnMaxLifetime)
		}
	})

	t.Run("database url from parts", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("DB_HOST", "db")
		t.Setenv("DB_USER", "svc")
		t.Setenv("DB_PASSWORD", "secret")
		t.Setenv("DB_NAME", "grading")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "postgres://svc:secret@db:5432/grading?sslmode=disable"
		if cfg.DatabaseURL != want {
			t.Errorf("expected %s, got %s", want, cfg.DatabaseURL)
		}
	})

	t.Run("lists and levels", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/db")
		t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
		t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
		t.Setenv("LOG_LEVEL", "DEBUG")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
			t.Errorf("unexpected brokers %v", cfg.Kafka.Brokers)
		}
		if len(cfg.AllowedOrigins) != 2 {
			t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
		}
		if cfg.LogLevel != slog.LevelDebug {
			t.Errorf("expected debug level, got %v", cfg.LogLevel)
		}
	})

	t.Run("missing database", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("DB_HOST", "")

		if _, err := LoadConfig(); err == nil {
			t.Fatal("expected error without database settings")
		}
	})
}
