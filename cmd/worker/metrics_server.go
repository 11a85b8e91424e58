package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultMetricsPort = 9090

// startMetricsServer serves Prometheus metrics alongside a liveness probe:
//
//   - GET /metrics  Prometheus scrape endpoint
//   - GET /health   liveness probe, always 200
//
// The listen port comes from METRICS_PORT (default 9090). The server runs
// in the background; canceling ctx shuts it down with a 5 second grace
// period for in-flight scrapes.
func startMetricsServer(ctx context.Context, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(metricsPort()),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("metrics server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server did not shut down cleanly", slog.Any("error", err))
			return
		}
		logger.Info("metrics server shut down")
	}()

	return srv
}

// metricsPort reads METRICS_PORT, falling back to the default when the
// variable is unset or not a usable port number.
func metricsPort() int {
	raw := os.Getenv("METRICS_PORT")
	if raw == "" {
		return defaultMetricsPort
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return defaultMetricsPort
	}
	return port
}
