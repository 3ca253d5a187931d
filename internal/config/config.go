// config.go

// Environment variable loading and validation.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MGallo-Code/obol/internal/signing"
)

// ErrConfigurationFatal wraps every error that must stop the process before it serves traffic.
var ErrConfigurationFatal = errors.New("fatal configuration error")

// MinSigningKeyBytes is the smallest accepted decoded SIGNING_KEY.
const MinSigningKeyBytes = 32

// DefaultLocalDevHosts matches hostnames (port stripped) served over plain HTTP in development.
const DefaultLocalDevHosts = `^(localhost|127\.0\.0\.1|\[::1\])$`

// Config holds all env configuration vars for obol.
type Config struct {
	// Identity provider credentials. The secret is only ever sent to the token endpoint.
	ProviderClientID     string
	ProviderClientSecret string

	// SigningKey is the decoded master secret. Never log it.
	SigningKey []byte

	DatabaseURL string
	// RedisURL is optional; empty disables the consumed-state ledger.
	RedisURL string

	Port     string
	LogLevel slog.Level

	// LocalDevHosts matches hostnames that get non-Secure cookies and http:// redirect URIs.
	LocalDevHosts *regexp.Regexp

	// Login state. Defaults: 10m lifetime, 24 random bytes.
	StateTTL   time.Duration
	StateBytes int

	// UpstreamTimeout bounds each provider and provisioning call. Default 10s.
	UpstreamTimeout time.Duration

	// Sign-in token minting. Defaults: 1h, issuer "obol", no audience.
	SignInTTL      time.Duration
	SignInIssuer   string
	SignInAudience string
}

// LoadConfig reads environment variables and returns a validated Config.
// Missing or invalid required variables return an error wrapping ErrConfigurationFatal.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.ProviderClientID = os.Getenv("PROVIDER_CLIENT_ID")
	if cfg.ProviderClientID == "" {
		return nil, fatalf("PROVIDER_CLIENT_ID is required")
	}
	cfg.ProviderClientSecret = os.Getenv("PROVIDER_CLIENT_SECRET")
	if cfg.ProviderClientSecret == "" {
		return nil, fatalf("PROVIDER_CLIENT_SECRET is required")
	}

	rawKey := os.Getenv("SIGNING_KEY")
	if rawKey == "" {
		return nil, fatalf("SIGNING_KEY is required")
	}
	key, err := decodeKey(rawKey)
	if err != nil {
		return nil, fatalf("SIGNING_KEY must be base64: %v", err)
	}
	if len(key) < MinSigningKeyBytes {
		return nil, fatalf("SIGNING_KEY must decode to at least %d bytes, got %d", MinSigningKeyBytes, len(key))
	}
	cfg.SigningKey = key

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fatalf("DATABASE_URL is required")
	}
	cfg.RedisURL = os.Getenv("REDIS_URL")

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "7865"
	}

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	pattern := os.Getenv("LOCAL_DEV_HOSTS")
	if pattern == "" {
		pattern = DefaultLocalDevHosts
	}
	cfg.LocalDevHosts, err = regexp.Compile(pattern)
	if err != nil {
		return nil, fatalf("LOCAL_DEV_HOSTS is not a valid regexp: %v", err)
	}

	cfg.StateTTL = envDuration("STATE_TTL", 10*time.Minute)
	cfg.StateBytes = envInt("STATE_BYTES", signing.MinTokenBytes)
	if cfg.StateBytes < signing.MinTokenBytes {
		slog.Warn("STATE_BYTES below minimum, using minimum", "value", cfg.StateBytes, "minimum", signing.MinTokenBytes)
		cfg.StateBytes = signing.MinTokenBytes
	}
	cfg.UpstreamTimeout = envDuration("UPSTREAM_TIMEOUT", 10*time.Second)

	cfg.SignInTTL = envDuration("SIGNIN_TOKEN_TTL", time.Hour)
	cfg.SignInIssuer = os.Getenv("SIGNIN_ISSUER")
	if cfg.SignInIssuer == "" {
		cfg.SignInIssuer = "obol"
	}
	cfg.SignInAudience = os.Getenv("SIGNIN_AUDIENCE")

	return cfg, nil
}

func fatalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfigurationFatal, fmt.Sprintf(format, args...))
}

// decodeKey accepts standard or URL-safe base64, padded or not.
func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// envInt reads an env var as int, returning def if missing or unparseable.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// envDuration reads an env var as time.Duration, returning def if missing or unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
