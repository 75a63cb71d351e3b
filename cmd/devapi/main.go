// Command devapi serves an in-memory clinic backend for local runs of the
// desktop app.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kidintake/internal/devapi"
	"kidintake/internal/domain"
	"kidintake/internal/logging"
)

func main() {
	addr := flag.String("addr", envOrDefault("DEVAPI_ADDR", ":8000"), "listen address")
	transcripts := flag.String("transcripts", envOrDefault("DEVAPI_TRANSCRIPTS", "민수|기침이 나요|열도 나요"), "canned transcripts separated by |")
	logLevel := flag.String("log-level", envOrDefault("KIDINTAKE_LOG_LEVEL", "info"), "log level")
	flag.Parse()

	logger, err := logging.New(logging.Config{Level: *logLevel}, os.Stderr)
	if err != nil {
		slog.Error("devapi: logger setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	backend := devapi.New(devapi.Options{
		Transcripts: splitTranscripts(*transcripts),
		Patients: []domain.Patient{
			{ID: 1, Name: "민수", Age: 6},
			{ID: 2, Name: "지아", Age: 4},
		},
		Logger: logger,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Mount("/", backend.Routes())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("devapi: listening", slog.String("addr", *addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("devapi: server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func splitTranscripts(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
