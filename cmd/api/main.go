package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"toolmart/internal/app/migrate"
	"toolmart/internal/config"
	httpx "toolmart/internal/http"
	"toolmart/internal/logger"
	"toolmart/internal/payments/stripe"
	"toolmart/internal/repository/postgres"
	"toolmart/internal/service/auth"
	"toolmart/internal/service/catalog"
	"toolmart/internal/service/order"
	"toolmart/internal/service/payment"
	"toolmart/internal/service/review"
	"toolmart/internal/service/user"
	"toolmart/internal/ws"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.LevelFor(cfg.Environment))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	orderHub := ws.NewHub()

	authSvc := auth.New(repo, log, cfg)
	userSvc := user.New(repo, authSvc, log)
	catalogSvc := catalog.New(repo, log)
	reviewSvc := review.New(repo, log)
	orderSvc := order.New(repo, repo, repo, orderHub, log)
	paymentSvc := payment.New(stripe.New(cfg.StripeSecretKey), cfg.PaymentCurrency, log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, userSvc, catalogSvc, reviewSvc, orderSvc, paymentSvc, limiter, cfg.OrderFeedBuffer, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
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
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
