package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("OVERVIEW_CACHE_TTL", "")
	t.Setenv("RABBITMQ_WORKER_MODE", "")

	cfg := Load()
	if cfg.Env != "development" {
		t.Fatalf("expected development env, got %q", cfg.Env)
	}
	if cfg.HTTPAddr != ":8090" {
		t.Fatalf("expected :8090, got %q", cfg.HTTPAddr)
	}
	if cfg.OverviewCacheTTL != 5*time.Minute {
		t.Fatalf("expected 5m cache ttl, got %s", cfg.OverviewCacheTTL)
	}
	if cfg.RabbitMQWorkerMode != "daemon" {
		t.Fatalf("expected daemon worker mode, got %q", cfg.RabbitMQWorkerMode)
	}
	if !cfg.Development() {
		t.Fatalf("expected development config")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("OVERVIEW_CACHE_TTL", "not-a-duration")
	t.Setenv("JWT_EXPIRY", "-5")
	t.Setenv("OBJECT_STORE_ENDPOINT", "")
	t.Setenv("R2_S3_ENDPOINT", "")
	t.Setenv("R2_ACCOUNT_ID", "acct")

	cfg := Load()
	if cfg.Development() {
		t.Fatalf("expected production config")
	}
	if len(cfg.CorsAllowedOrigins) != 2 || cfg.CorsAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CorsAllowedOrigins)
	}
	if cfg.OverviewCacheTTL != 5*time.Minute {
		t.Fatalf("expected fallback ttl, got %s", cfg.OverviewCacheTTL)
	}
	if cfg.JWTExpirySeconds != 3600 {
		t.Fatalf("expected fallback expiry, got %d", cfg.JWTExpirySeconds)
	}
	if cfg.ObjectStoreEndpoint != "https://acct.r2.cloudflarestorage.com" {
		t.Fatalf("unexpected endpoint %q", cfg.ObjectStoreEndpoint)
	}
}
