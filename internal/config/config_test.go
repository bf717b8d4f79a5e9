package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if errWrite := os.WriteFile(path, []byte(content), 0600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database-dsn: file:test.db
jwt:
  secret: test-secret
`)

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}

	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("listen addr: got %s", cfg.ListenAddr)
	}
	if cfg.JWT.Expiry.Std() != DefaultJWTExpiry {
		t.Fatalf("jwt expiry: got %s", cfg.JWT.Expiry.Std())
	}
	if cfg.RateLimit.WindowSeconds != DefaultRateLimitWindow || cfg.RateLimit.MaxRequests != DefaultRateLimitMax {
		t.Fatalf("rate limit defaults: got %+v", cfg.RateLimit)
	}
	if cfg.Gemini.Model != DefaultGeminiModel {
		t.Fatalf("gemini model: got %s", cfg.Gemini.Model)
	}
}

func TestLoadRequiresDatabaseDSN(t *testing.T) {
	path := writeConfigFile(t, `
jwt:
  secret: test-secret
`)

	if _, errLoad := Load(path); errLoad == nil {
		t.Fatalf("expected error for missing database-dsn")
	}
}

func TestLoadEnvOverridesWin(t *testing.T) {
	path := writeConfigFile(t, `
database-dsn: file:test.db
redis-addr: localhost:6379
jwt:
  secret: file-secret
  expiry: 2h
`)

	t.Setenv("BLENDLAB_JWT_SECRET", "env-secret")
	t.Setenv("BLENDLAB_REDIS_ADDR", "redis:6380")

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}

	if cfg.JWT.Secret != "env-secret" {
		t.Fatalf("jwt secret: got %s", cfg.JWT.Secret)
	}
	if cfg.RedisAddr != "redis:6380" {
		t.Fatalf("redis addr: got %s", cfg.RedisAddr)
	}
	if cfg.JWT.Expiry.Std() != 2*time.Hour {
		t.Fatalf("jwt expiry: got %s", cfg.JWT.Expiry.Std())
	}
}
