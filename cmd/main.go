// cmd/main.go is the EcoRide API entry point.
// It loads configuration, wires the layers together and serves HTTP until
// SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ecoride/carpool/internal/config"
	"github.com/ecoride/carpool/internal/database"
	"github.com/ecoride/carpool/internal/handler"
	"github.com/ecoride/carpool/internal/logger"
	"github.com/ecoride/carpool/internal/repository"
	"github.com/ecoride/carpool/internal/service"
	"github.com/ecoride/carpool/internal/session"
)

const janitorInterval = 5 * time.Minute

func main() {
	cfg := config.MustLoad()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Storage ──────────────────────────────────────────────────────
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	log.Info("connected to postgres")

	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, pool, log); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	sessions, sessionsPing, closeStore, err := newSessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── 2. Layers ───────────────────────────────────────────────────────
	users := repository.NewUserRepository(pool)
	rides := repository.NewRideRepository(pool)
	bookings := repository.NewBookingRepository(pool)

	authSvc := service.NewAuthService(users, log)
	rideSvc := service.NewRideService(rides, bookings, time.UTC)

	manager := session.NewManager(sessions, log, cfg.SessionCookieName, cfg.SessionTTL, cfg.CookieSecure)
	if !cfg.IsDevelopment() && !cfg.CookieSecure {
		log.Warn("session cookies are sent without the Secure flag", zap.String("env", cfg.AppEnv))
	}

	limiter := handler.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)
	go limiter.RunJanitor(ctx, janitorInterval)

	router := handler.NewRouter(handler.RouterConfig{
		Log:        log,
		Rides:      handler.NewRideHandler(rideSvc, log, cfg.Debug),
		Auth:       handler.NewAuthHandler(authSvc, manager, log, cfg.Debug),
		Health:     handler.NewHealthHandler(pool, sessionsPing, log),
		Sessions:   manager,
		Limiter:    limiter,
		CORSOrigin: cfg.CORSOrigin,
		StaticDir:  cfg.StaticDir,
		TrustProxy: cfg.TrustProxy,
	})

	// ── 3. Serve with graceful shutdown ─────────────────────────────────
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newSessionStore picks Redis when configured and the in-process store
// otherwise. The Pinger is nil for the in-process store; the returned func
// releases the store.
func newSessionStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (session.Store, handler.Pinger, func(), error) {
	if cfg.RedisAddr == "" {
		mem := session.NewMemoryStore()
		go mem.RunSweeper(ctx, janitorInterval)
		log.Info("sessions kept in memory")
		return mem, nil, func() {}, nil
	}

	client, err := session.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("redis: %w", err)
	}
	log.Info("sessions kept in redis", zap.String("addr", cfg.RedisAddr))
	store := session.NewRedisStore(client)
	return store, store, func() { _ = client.Close() }, nil
}
