package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/carpool-driver/internal/api"
	"github.com/example/carpool-driver/internal/config"
	"github.com/example/carpool-driver/internal/logging"
	"github.com/example/carpool-driver/internal/session"
	"github.com/example/carpool-driver/internal/storage"
)

func main() {
	os.Exit(realMain())
}

// realMain returns the exit code so deferred cleanup runs before exit.
func realMain() int {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration:", err)
		return 1
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, closeKV, err := storage.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "storage:", err)
		return 1
	}
	defer closeKV()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metrics := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		defer metrics.Close()
	}

	sess := session.New(kv, logger)
	a := &app{
		cfg:    cfg,
		kv:     kv,
		sess:   sess,
		client: api.New(cfg.APIURL, sess, api.WithLogger(logger)),
		logger: logger,
		out:    os.Stdout,
	}

	return exitCode(os.Stderr, run(ctx, a, os.Args[1:]))
}

func exitCode(stderr io.Writer, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 2
	case api.IsSessionExpired(err):
		fmt.Fprintln(stderr, "error:", err)
		fmt.Fprintln(stderr, "run `driver login` to sign in again")
		return 1
	default:
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
}
