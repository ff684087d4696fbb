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

	"learned/internal/api"
	"learned/internal/backend"
	"learned/internal/config"
	"learned/internal/db"
	"learned/internal/logger"
	"learned/internal/results"
	"learned/internal/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "learned: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	gen, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.APIKey() == "" {
		log.Warn("no API key configured; generation requests will fail", "provider", cfg.Provider)
	}

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	study := services.NewStudyService(gen, store, services.NewGenerationLog(conn), log, services.StudyOptions{
		Profiles:       cfg.Profiles,
		MaxInputChars:  cfg.MaxInputChars,
		RequestTimeout: cfg.RequestTimeout,
	})
	server := api.NewServer(study, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "provider", gen.Provider(), "model", gen.Model(), "store", cfg.ResultStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newGenerator(ctx context.Context, cfg config.Config) (backend.Generator, error) {
	if cfg.Provider == backend.ProviderOpenAI {
		return backend.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIEndpoint, cfg.OpenAIModel), nil
	}
	gen, err := backend.NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("init gemini backend: %w", err)
	}
	return gen, nil
}

func newStore(ctx context.Context, cfg config.Config) (results.Store, func(), error) {
	if cfg.ResultStore == config.StoreRedis {
		rs, err := results.NewRedisStore(ctx, cfg.RedisAddr, cfg.ResultTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("init result store: %w", err)
		}
		return rs, func() { _ = rs.Close() }, nil
	}
	return results.NewMemoryStore(cfg.ResultTTL), func() {}, nil
}
