package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/carpool-driver/internal/config"
	"github.com/example/carpool-driver/internal/dispatch"
	"github.com/example/carpool-driver/internal/geo"
	httpapi "github.com/example/carpool-driver/internal/http"
	"github.com/example/carpool-driver/internal/ingest"
	"github.com/example/carpool-driver/internal/logging"
	"github.com/example/carpool-driver/internal/payments"
)

// devapi serves a seeded development copy of the carpool backend API.
func main() {
	cfg, err := config.LoadDevAPIConfig()
	if err != nil {
		logging.NewLogger("error").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := httpapi.NewStore()
	if err := httpapi.Seed(store, time.Now()); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}

	var locations geo.Store = geo.NewIndex()
	if cfg.RedisAddr != "" {
		rg, err := geo.NewRedisGeo(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		if err != nil {
			logger.Error("redis unavailable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer rg.Close()
		locations = rg
	}

	var processor payments.Processor = payments.NewLocalProcessor()
	if cfg.StripeAPIKey != "" {
		processor = payments.NewStripeClient(cfg.StripeAPIKey, cfg.Currency)
	}

	deps := httpapi.Deps{
		Store:    store,
		Tokens:   httpapi.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Geo:      locations,
		Payments: processor,
		Notices:  dispatch.NewWSRegistry(logger),
		Logger:   logger,
	}
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.LocationTopic)
		defer kp.Close()
		deps.Mirror = kp
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(deps),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("devapi listening",
			"addr", cfg.HTTPAddr,
			"payments", processor.Name(),
			"redis", cfg.RedisAddr != "",
			"kafka", len(cfg.KafkaBrokers) > 0,
			"demo_phone", httpapi.DemoPhone,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("devapi stopped")
}
