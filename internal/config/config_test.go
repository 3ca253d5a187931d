package config

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// testKey is 32 bytes, base64 encoded.
var testKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

// --- LoadConfig ---

func TestLoadConfig(t *testing.T) {
	// Helper sets the minimum required env vars for a valid config
	setRequired := func(t *testing.T) {
		t.Helper()
		t.Setenv("PROVIDER_CLIENT_ID", "client-1")
		t.Setenv("PROVIDER_CLIENT_SECRET", "secret-1")
		t.Setenv("SIGNING_KEY", testKey)
		t.Setenv("DATABASE_URL", "postgres://localhost/obol")
	}

	t.Run("returns valid config with all required vars", func(t *testing.T) {
		setRequired(t)

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.ProviderClientID != "client-1" {
			t.Errorf("ProviderClientID: expected %q, got %q", "client-1", cfg.ProviderClientID)
		}
		if cfg.ProviderClientSecret != "secret-1" {
			t.Errorf("ProviderClientSecret: expected %q, got %q", "secret-1", cfg.ProviderClientSecret)
		}
		if string(cfg.SigningKey) != "0123456789abcdef0123456789abcdef" {
			t.Error("SigningKey not decoded")
		}
		if cfg.DatabaseURL != "postgres://localhost/obol" {
			t.Errorf("DatabaseURL: got %q", cfg.DatabaseURL)
		}
	})

	for _, name := range []string{"PROVIDER_CLIENT_ID", "PROVIDER_CLIENT_SECRET", "SIGNING_KEY", "DATABASE_URL"} {
		t.Run("fatal when "+name+" is missing", func(t *testing.T) {
			setRequired(t)
			t.Setenv(name, "")

			_, err := LoadConfig()
			if !errors.Is(err, ErrConfigurationFatal) {
				t.Fatalf("expected ErrConfigurationFatal, got %v", err)
			}
			if !strings.Contains(err.Error(), name) {
				t.Errorf("error should name %s, got %q", name, err.Error())
			}
		})
	}

	t.Run("fatal when SIGNING_KEY is not base64", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SIGNING_KEY", "!!not base64!!")

		if _, err := LoadConfig(); !errors.Is(err, ErrConfigurationFatal) {
			t.Fatalf("expected ErrConfigurationFatal, got %v", err)
		}
	})

	t.Run("fatal when SIGNING_KEY is too short", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SIGNING_KEY", base64.StdEncoding.EncodeToString([]byte("short")))

		if _, err := LoadConfig(); !errors.Is(err, ErrConfigurationFatal) {
			t.Fatalf("expected ErrConfigurationFatal, got %v", err)
		}
	})

	t.Run("accepts url-safe unpadded SIGNING_KEY", func(t *testing.T) {
		setRequired(t)
		raw := []byte("\xfb\xff\xfe0123456789abcdef0123456789abcdef")
		t.Setenv("SIGNING_KEY", base64.RawURLEncoding.EncodeToString(raw))

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if string(cfg.SigningKey) != string(raw) {
			t.Error("SigningKey mismatch")
		}
	})

	t.Run("fatal when LOCAL_DEV_HOSTS is not a regexp", func(t *testing.T) {
		setRequired(t)
		t.Setenv("LOCAL_DEV_HOSTS", "(")

		if _, err := LoadConfig(); !errors.Is(err, ErrConfigurationFatal) {
			t.Fatalf("expected ErrConfigurationFatal, got %v", err)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		setRequired(t)
		for _, k := range []string{"PORT", "REDIS_URL", "LOG_LEVEL", "LOCAL_DEV_HOSTS", "STATE_TTL", "STATE_BYTES", "UPSTREAM_TIMEOUT", "SIGNIN_TOKEN_TTL", "SIGNIN_ISSUER", "SIGNIN_AUDIENCE"} {
			t.Setenv(k, "")
		}

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != "7865" {
			t.Errorf("Port: expected 7865, got %q", cfg.Port)
		}
		if cfg.RedisURL != "" {
			t.Errorf("RedisURL: expected empty, got %q", cfg.RedisURL)
		}
		if cfg.LogLevel != slog.LevelInfo {
			t.Errorf("LogLevel: expected info, got %v", cfg.LogLevel)
		}
		if cfg.StateTTL != 10*time.Minute {
			t.Errorf("StateTTL: expected 10m, got %v", cfg.StateTTL)
		}
		if cfg.StateBytes != 24 {
			t.Errorf("StateBytes: expected 24, got %d", cfg.StateBytes)
		}
		if cfg.UpstreamTimeout != 10*time.Second {
			t.Errorf("UpstreamTimeout: expected 10s, got %v", cfg.UpstreamTimeout)
		}
		if cfg.SignInTTL != time.Hour {
			t.Errorf("SignInTTL: expected 1h, got %v", cfg.SignInTTL)
		}
		if cfg.SignInIssuer != "obol" {
			t.Errorf("SignInIssuer: expected obol, got %q", cfg.SignInIssuer)
		}
		for host, local := range map[string]bool{"localhost": true, "127.0.0.1": true, "[::1]": true, "example.com": false, "localhost.example.com": false} {
			if cfg.LocalDevHosts.MatchString(host) != local {
				t.Errorf("LocalDevHosts(%q): expected %v", host, local)
			}
		}
	})

	t.Run("reads overrides", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PORT", "9000")
		t.Setenv("LOG_LEVEL", "DEBUG")
		t.Setenv("STATE_TTL", "5m")
		t.Setenv("STATE_BYTES", "32")
		t.Setenv("UPSTREAM_TIMEOUT", "3s")
		t.Setenv("SIGNIN_AUDIENCE", "downstream")
		t.Setenv("LOCAL_DEV_HOSTS", `^dev\.local$`)

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Port != "9000" {
			t.Errorf("Port: got %q", cfg.Port)
		}
		if cfg.LogLevel != slog.LevelDebug {
			t.Errorf("LogLevel: got %v", cfg.LogLevel)
		}
		if cfg.StateTTL != 5*time.Minute {
			t.Errorf("StateTTL: got %v", cfg.StateTTL)
		}
		if cfg.StateBytes != 32 {
			t.Errorf("StateBytes: got %d", cfg.StateBytes)
		}
		if cfg.UpstreamTimeout != 3*time.Second {
			t.Errorf("UpstreamTimeout: got %v", cfg.UpstreamTimeout)
		}
		if cfg.SignInAudience != "downstream" {
			t.Errorf("SignInAudience: got %q", cfg.SignInAudience)
		}
		if !cfg.LocalDevHosts.MatchString("dev.local") || cfg.LocalDevHosts.MatchString("localhost") {
			t.Error("LocalDevHosts override not applied")
		}
	})

	t.Run("invalid optional values fall back to defaults", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STATE_TTL", "soon")
		t.Setenv("STATE_BYTES", "8")
		t.Setenv("UPSTREAM_TIMEOUT", "-1s")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.StateTTL != 10*time.Minute {
			t.Errorf("StateTTL: expected default, got %v", cfg.StateTTL)
		}
		if cfg.StateBytes != 24 {
			t.Errorf("StateBytes: expected minimum 24, got %d", cfg.StateBytes)
		}
		if cfg.UpstreamTimeout != 10*time.Second {
			t.Errorf("UpstreamTimeout: expected default, got %v", cfg.UpstreamTimeout)
		}
	})
}
