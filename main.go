package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MGallo-Code/obol/internal/auth"
	"github.com/MGallo-Code/obol/internal/config"
	"github.com/MGallo-Code/obol/internal/directory"
	"github.com/MGallo-Code/obol/internal/oauth"
	"github.com/MGallo-Code/obol/internal/session"
	"github.com/MGallo-Code/obol/internal/signin"
	"github.com/MGallo-Code/obol/internal/signing"
	"github.com/MGallo-Code/obol/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

// Embeds the migration files INTO the go bin

//go:embed migrations/*.sql
var migrationsDir embed.FS

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	// Load config first so we can set log level
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback logger before config is available
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, nil, oauth.DiscordOptions{}); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup (ps.Close, rdb.Close) always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
// discordOpts overrides provider endpoints; the zero value targets discord.com.
func run(ctx context.Context, cfg *config.Config, ready chan<- string, discordOpts oauth.DiscordOptions) error {
	ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to set up postgres store: %w", err)
	}
	defer ps.Close()

	migrationsFS, err := fs.Sub(migrationsDir, "migrations")
	if err != nil {
		return fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	if err := ps.Migrate(ctx, migrationsFS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Consumed-state ledger is opt-in; without Redis the flow stays fully stateless.
	var ledger auth.StateLedger = store.NoopStateLedger{}
	if cfg.RedisURL != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to set up redis client: %w", err)
		}
		defer rdb.Close()
		ledger = store.NewRedisStateLedger(rdb)
	} else {
		slog.Info("REDIS_URL not set, state replay ledger disabled")
	}

	// Independent keys per purpose, both derived from SIGNING_KEY.
	sessionKey, err := signing.DeriveKey(cfg.SigningKey, "obol session v1")
	if err != nil {
		return fmt.Errorf("deriving session key: %w", err)
	}
	signInKey, err := signing.DeriveKey(cfg.SigningKey, "obol signin v1")
	if err != nil {
		return fmt.Errorf("deriving sign-in key: %w", err)
	}

	signer, err := signing.NewSigner(sessionKey)
	if err != nil {
		return fmt.Errorf("creating signer: %w", err)
	}
	minter, err := signin.NewMinter(signin.Config{
		Key:      signInKey,
		Issuer:   cfg.SignInIssuer,
		Audience: cfg.SignInAudience,
		TTL:      cfg.SignInTTL,
	})
	if err != nil {
		return fmt.Errorf("creating sign-in minter: %w", err)
	}

	if discordOpts.HTTPClient == nil {
		discordOpts.HTTPClient = oauth.NewHTTPClient(cfg.UpstreamTimeout)
	}
	provider := oauth.NewDiscordProvider(cfg.ProviderClientID, cfg.ProviderClientSecret, discordOpts)

	h := auth.AuthHandler{
		Broker: &auth.Broker{
			Codec:           session.NewCodec(signer),
			Provider:        provider,
			Users:           directory.New(ps, minter),
			Ledger:          ledger,
			StateTTL:        cfg.StateTTL,
			StateBytes:      cfg.StateBytes,
			UpstreamTimeout: cfg.UpstreamTimeout,
			LocalDev:        cfg.LocalDevHosts,
		},
		PS: ps,
	}

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{
		Handler:           buildRouter(&h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("obol listening", "addr", ln.Addr().String(), "provider", provider.Name())
		// Send error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// Stops accepting, then waits for in-flight requests or the timeout.
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildRouter wires all routes and middleware.
// Called from run() and from smoke tests.
func buildRouter(h *auth.AuthHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.CheckHealth)
	// Method checks live in the broker so every wrong method is a bodyless 400.
	r.HandleFunc("/login", h.Login)
	r.HandleFunc(auth.TokenPath, h.Token)

	return r
}
