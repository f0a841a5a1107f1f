package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"contentmachine/internal/app"
	"contentmachine/internal/config"
	"contentmachine/internal/logging"
	transporthttp "contentmachine/internal/transport/http"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	format := cfg.LogFormat
	if format == "" {
		format = "json"
	}
	logger := logging.New(cfg.LogLevel, format)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("wire components")
	}
	if cfg.DashboardPassword == "" {
		logger.Warn("DOMINATE_PASSWORD not set, dashboard routes will reject every request")
	}

	deps := transporthttp.Deps{
		Dispatcher: a.Dispatcher,
		Scheduler:  a.Typefully,
		Store:      a.Store,
		Metrics:    a.Metrics,
		Logger:     logger.WithField("component", "http"),
	}
	// Leave Machine as a nil interface rather than a typed nil studio.
	if a.Studio != nil {
		deps.Machine = a.Studio
	}
	server := transporthttp.NewServer(cfg, deps)

	// Clip and signal routes run for up to two minutes.
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           withLogging(logger, withCORS(server.Routes())),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      150 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("content machine API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("listen")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withLogging(logger logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		})
		if r.Method == http.MethodOptions {
			entry.Debug("cors preflight")
			return
		}
		entry.Info("request")
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+transporthttp.PasswordHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
