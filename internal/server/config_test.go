package server

import (
	"testing"
	"time"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.Port != ":8080" {
		t.Errorf("Expected default port :8080, got %s", cfg.Port)
	}
	if cfg.MaxMessageSize != 512 {
		t.Errorf("Expected default max message size 512, got %d", cfg.MaxMessageSize)
	}
	if cfg.SendBufferSize != 256 {
		t.Errorf("Expected default send buffer size 256, got %d", cfg.SendBufferSize)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected default shutdown timeout 10s, got %s", cfg.ShutdownTimeout)
	}
	if cfg.RateLimit.Burst != 5 {
		t.Errorf("Expected default rate limit burst 5, got %d", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("Expected default refill interval 1s, got %s", cfg.RateLimit.RefillInterval)
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "http://example.com, http://other.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("SEND_BUFFER_SIZE", "64")
	t.Setenv("SHUTDOWN_TIMEOUT", "5")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2")

	cfg := NewConfigFromEnv()

	if cfg.Port != ":9090" {
		t.Errorf("Expected port :9090, got %s", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("Expected 2 allowed origins, got %d", len(cfg.AllowedOrigins))
	}
	if cfg.AllowedOrigins[0] != "http://example.com" {
		t.Errorf("Expected trimmed origin http://example.com, got %q", cfg.AllowedOrigins[0])
	}
	if cfg.MaxMessageSize != 1024 {
		t.Errorf("Expected max message size 1024, got %d", cfg.MaxMessageSize)
	}
	if cfg.SendBufferSize != 64 {
		t.Errorf("Expected send buffer size 64, got %d", cfg.SendBufferSize)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown timeout 5s, got %s", cfg.ShutdownTimeout)
	}
	if cfg.RateLimit.Burst != 10 {
		t.Errorf("Expected rate limit burst 10, got %d", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != 2*time.Second {
		t.Errorf("Expected refill interval 2s, got %s", cfg.RateLimit.RefillInterval)
	}
}

func TestNewConfigFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "not-a-number")
	t.Setenv("SEND_BUFFER_SIZE", "-5")
	t.Setenv("RATE_LIMIT_BURST", "0")

	cfg := NewConfigFromEnv()

	if cfg.MaxMessageSize != 512 {
		t.Errorf("Invalid MAX_MESSAGE_SIZE should fall back to 512, got %d", cfg.MaxMessageSize)
	}
	if cfg.SendBufferSize != 256 {
		t.Errorf("Invalid SEND_BUFFER_SIZE should fall back to 256, got %d", cfg.SendBufferSize)
	}
	if cfg.RateLimit.Burst != 5 {
		t.Errorf("Invalid RATE_LIMIT_BURST should fall back to 5, got %d", cfg.RateLimit.Burst)
	}
}

func TestSetConfigSanitizesZeroValues(t *testing.T) {
	SetConfig(&Config{})
	t.Cleanup(func() { SetConfig(nil) })

	cfg := currentConfig()
	if cfg.Port != ":8080" {
		t.Errorf("Expected sanitized port :8080, got %s", cfg.Port)
	}
	if cfg.SendBufferSize != 256 {
		t.Errorf("Expected sanitized send buffer size 256, got %d", cfg.SendBufferSize)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected sanitized shutdown timeout 10s, got %s", cfg.ShutdownTimeout)
	}
}
