package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/config"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/pkg/logger"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/service"
	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	// The memory queue cannot cross processes; without a database the api
	// binary runs its own embedded worker instead.
	if cfg.Database.URL == "" {
		slog.Error("worker requires a database-backed queue, set database.url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := service.NewRuntime(ctx, cfg)
	if err != nil {
		slog.Error("failed to wire services", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	worker := service.NewWorker(rt.Queue, rt.Store, rt.Pipeline, cfg)

	slog.Info("worker starting", "concurrency", cfg.Worker.Concurrency)
	worker.Run(ctx)
	slog.Info("worker stopped")
}
