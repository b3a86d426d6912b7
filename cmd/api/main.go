package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/splax/expensetracker/internal/app/storage"
	httpx "github.com/splax/expensetracker/internal/http"
	"github.com/splax/expensetracker/internal/service/account"
	"github.com/splax/expensetracker/internal/service/auth"
	"github.com/splax/expensetracker/internal/service/expense"
	"github.com/splax/expensetracker/pkg/config"
	"github.com/splax/expensetracker/pkg/crypto"
	jwtpkg "github.com/splax/expensetracker/pkg/jwt"
	"github.com/splax/expensetracker/pkg/logger"
)

func main() {
	bootLog := logger.New("api", logger.ParseLevel(os.Getenv("LOG_LEVEL")))
	if err := config.LoadDotEnv(); err != nil {
		bootLog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		bootLog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	// run owns every deferred close, so they finish before the exit below.
	if err := run(cfg, log); err != nil {
		log.Error("api server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.APIConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s database: %w", cfg.DatabaseDriver, err)
	}
	defer store.Close()
	if err := store.Migrator.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := store.Migrator.Ensure(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	hasher, err := crypto.NewHasher(cfg.HasherConfig())
	if err != nil {
		return fmt.Errorf("password hashing configuration: %w", err)
	}
	tokens, err := jwtpkg.NewService(jwtpkg.Config{
		Secret:     cfg.JWTSecret,
		Algorithm:  cfg.JWTAlgorithm,
		DefaultTTL: cfg.DefaultTokenTTL(),
		Issuer:     cfg.JWTIssuer,
	})
	if err != nil {
		return fmt.Errorf("token configuration: %w", err)
	}

	authSvc := auth.New(store.Store, hasher, tokens, log, auth.Config{AccessTokenTTL: cfg.AccessTokenTTL()})
	accountSvc := account.New(store.Store, hasher, log)
	expenseSvc := expense.New(store.Store, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, accountSvc, expenseSvc, limiter, store.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "driver", cfg.DatabaseDriver, "password_scheme", hasher.Scheme(), "jwt_algorithm", tokens.Algorithm())
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
		return nil
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}
