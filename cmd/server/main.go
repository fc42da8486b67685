package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"golang.org/x/exp/slog"

	"studysync/internal/app/server/api"
	"studysync/internal/app/server/config"
	"studysync/internal/infrastructure/storage/postgres"
	"studysync/internal/utils/logger"
)

func main() {
	conf := config.MustLoad()
	log := logger.New(conf.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := postgres.New(ctx, conf)
	if err != nil {
		log.Error("failed to init storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer storage.Close()

	// Чистка просроченных сессий раз в час
	sessions := postgres.NewSessionRepository(storage, log)
	c := cron.New()
	if _, err := c.AddFunc("@hourly", func() {
		n, err := sessions.DeleteExpired(context.Background())
		if err != nil {
			log.Warn("expired sessions cleanup failed", slog.Any("error", err))
			return
		}
		log.Debug("expired sessions removed", slog.Int64("count", n))
	}); err != nil {
		log.Error("failed to schedule cleanup", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	srv := &http.Server{
		Addr:    conf.Server.RunAddress,
		Handler: api.New(storage, conf, log),
	}

	go func() {
		log.Info("server started", slog.String("address", conf.Server.RunAddress), slog.String("env", conf.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", slog.Any("error", err))
	}
}
