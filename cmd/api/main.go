package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/backend"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/coupon"
	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/payment"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/transform"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const sweepInterval = time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting storefront API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions, closeSessions, err := newSessionBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	api := backend.NewClient(cfg.Backend, cfg.Breaker, logger)
	transformer := transform.New(cfg.Backend.ImageBaseURL, logger)

	registry := cart.NewRegistry(sessions, cart.Deps{
		API:         api,
		Coupons:     coupon.NewValidator(api, logger),
		Transformer: transformer,
		Logger:      logger,
	}, time.Duration(cfg.Session.IdleStoreLimit)*time.Second)
	go registry.Run(ctx, sweepInterval)

	productService := service.NewProductService(api, transformer, logger)
	orderService := service.NewOrderService(api, logger)
	gateway := payment.NewClient(cfg.Payment, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second, logger)

	stores := handler.RegistrySource(registry)
	mux := router.New(router.Handlers{
		Cart:    handler.NewCartHandler(stores, productService, logger),
		Order:   handler.NewOrderHandler(stores, orderService, logger),
		Product: handler.NewProductHandler(productService, logger),
		Payment: handler.NewPaymentHandler(stores, gateway, logger),
	}, cfg.Cookies, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.Backend.TimeoutSeconds+15) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Str("backend", cfg.Backend.BaseURL).
			Str("session_driver", cfg.Session.Driver).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// newSessionBackend builds the session storage selected by configuration and
// returns a func releasing its connections.
func newSessionBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (session.Backend, func(), error) {
	ttl := time.Duration(cfg.Session.TTLSeconds) * time.Second

	switch cfg.Session.Driver {
	case config.SessionDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("using redis session storage")
		return session.NewRedisBackend(client, ttl), func() { _ = client.Close() }, nil

	case config.SessionDriverPostgres:
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		repo := repository.NewSessionRepository(pool, ttl, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		go purgeExpired(ctx, repo, logger)
		return repo, pool.Close, nil

	default:
		logger.Warn().Msg("using in-memory session storage; selections are lost on restart")
		return session.NewMemoryBackend(), func() {}, nil
	}
}

func purgeExpired(ctx context.Context, repo repository.SessionRepository, logger zerolog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := repo.PurgeExpired(ctx); err != nil {
				logger.Warn().Err(err).Msg("session purge failed")
			}
		}
	}
}
