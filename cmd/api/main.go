package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/config"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/handler"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/middleware"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/pkg/logger"
	"github.com/Archversee/TP2-CloudNative-AI-Sustainability-Proj/service"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	serviceName = "ecolens-api"
	version     = "1.0.0"
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
	slog.Info("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := service.NewRuntime(ctx, cfg)
	if err != nil {
		slog.Error("failed to wire services", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	// In memory mode jobs cannot cross processes, so process them here
	if !rt.Persistent() {
		worker := service.NewWorker(rt.Queue, rt.Store, rt.Pipeline, cfg)
		go worker.Run(ctx)
		slog.Info("embedded worker started", "concurrency", cfg.Worker.Concurrency)
	}

	documentHandler := handler.NewDocumentHandler(rt.Store, rt.Blobs, rt.Queue, cfg)
	companyHandler := handler.NewCompanyHandler(rt.Store, rt.Blobs)
	searchHandler := handler.NewSearchHandler(rt.Retrieval, &cfg.Search)
	statsHandler := handler.NewStatsHandler(rt.Store, rt.Queue)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS())
	router.Use(middleware.RateLimit(cfg.Server.RatePerSecond, cfg.Server.RateBurst))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
			"version": version,
		})
	})

	api := router.Group("/api")
	{
		api.POST("/upload", documentHandler.Upload)
		api.GET("/documents/:id", documentHandler.Get)
		api.POST("/documents/:id/reprocess", documentHandler.Reprocess)

		api.GET("/search", searchHandler.SearchGet)
		api.POST("/search", searchHandler.Search)

		api.GET("/companies", companyHandler.List)
		api.GET("/companies/:company", companyHandler.Get)
		api.GET("/companies/:company/history", companyHandler.History)
		api.GET("/companies/:company/claims", companyHandler.Claims)
		api.GET("/compare", companyHandler.Compare)

		api.GET("/stats", statsHandler.Stats)
		api.GET("/status", statsHandler.Status)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
