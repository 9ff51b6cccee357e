package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"messagely/internal/cache"
	"messagely/internal/config"
	"messagely/internal/domain"
	"messagely/internal/httpserver"
	"messagely/internal/logging"
	"messagely/internal/security"
	"messagely/internal/service"
	"messagely/internal/store/postgres"
	"messagely/internal/store/sqlite"
	"messagely/internal/ws"
)

// @title           Messagely API
// @version         1.0
// @description     Direct messaging backend: registration, login, roster and read receipts.

// @host            localhost:8000
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "messagely: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	log, logCloser := logging.New(logging.Options{Level: level, File: cfg.LogFile, Service: cfg.AppName})
	defer logCloser.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, users, messages, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("database ready", "driver", cfg.DBDriver)

	// Security components
	tokenSvc := security.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL())
	passwordHasher := security.NewPasswordHasher(cfg.BcryptCost)
	encryptor, err := security.NewEncryptor(cfg.EncryptKey, cfg.LegacyEncryptKeys)
	if err != nil {
		return fmt.Errorf("initialize encryptor: %w", err)
	}

	var roster service.RosterCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, roster cache will fall through", "addr", cfg.RedisAddr, "error", err)
		}
		roster = cache.NewRosterCache(rdb, cfg.RosterCacheTTL)
		log.Info("roster cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.RosterCacheTTL)
	}

	hub := ws.NewHub(log)

	router := httpserver.NewRouter(httpserver.Deps{
		AppName:     cfg.AppName,
		CORSOrigins: cfg.CORSOrigins,
		Tokens:      tokenSvc,
		Auth:        service.NewAuthService(users, tokenSvc, passwordHasher, roster, nil, log),
		Users:       service.NewUserService(users, roster, encryptor, log),
		Messages:    service.NewMessageService(messages, encryptor, hub, nil, log),
		WS:          ws.MakeHandler(hub, tokenSvc, cfg.CORSOrigins, log),
		Ping:        db.PingContext,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.HTTPAddr(), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Graceful shutdown
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	return nil
}

// openStore opens the configured database, applies migrations and returns
// repositories bound to it.
func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, domain.UserRepository, domain.MessageRepository, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		return db, postgres.NewUserRepo(db), postgres.NewMessageRepo(db), nil
	default:
		db, err := sqlite.Open(sqlite.DSN(cfg.SQLitePath))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := sqlite.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		return db, sqlite.NewUserRepo(db), sqlite.NewMessageRepo(db), nil
	}
}
