package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rrealai/invoice/config"
	"github.com/rrealai/invoice/handler"
	"github.com/rrealai/invoice/middleware"
	"github.com/rrealai/invoice/pkg/logger"
	"github.com/rrealai/invoice/pkg/metrics"
	"github.com/rrealai/invoice/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully", "environment", cfg.Server.Environment)

	extractorSvc, err := service.NewExtractorService(&cfg.OpenAI)
	if err != nil {
		slog.Error("failed to initialize extractor", "error", err)
		os.Exit(1)
	}
	if cfg.OpenAI.APIKey == "" {
		slog.Warn("OPENAI_API_KEY not set, invoice processing will fail until it is configured")
	}

	clickupSvc := service.NewClickUpService(&cfg.ClickUp)
	checkClickUp(clickupSvc)

	m := metrics.New()
	opts := []service.ProcessorOption{service.WithRecorder(m)}

	if cfg.Archive.Enabled {
		archiveSvc, err := service.NewArchiveService(&cfg.Archive)
		if err != nil {
			slog.Error("failed to initialize archive", "error", err)
			os.Exit(1)
		}
		if err := archiveSvc.EnsureBucket(context.Background()); err != nil {
			slog.Error("failed to ensure archive bucket", "error", err)
			os.Exit(1)
		}
		opts = append(opts, service.WithArchive(archiveSvc))
		slog.Info("invoice image archive enabled", "bucket", cfg.Archive.Bucket)
	}

	processor := service.NewInvoiceProcessor(extractorSvc, clickupSvc, opts...)

	gin.SetMode(gin.ReleaseMode)
	router := setupRouter(cfg, processor, m)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
		// extraction and task submission run inside one request
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.OpenAI.Timeout + cfg.ClickUp.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// loadConfig reads path when it exists and falls back to environment-only configuration.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.LoadEnv()
	}
	return cfg, err
}

func checkClickUp(svc *service.ClickUpService) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name, err := svc.TestConnection(ctx)
	if err != nil {
		slog.Warn("ClickUp connection check failed, tasks may fail or be mocked", "error", err)
		return
	}
	slog.Info("ClickUp connection verified", "list", name)
}

func setupRouter(cfg *config.Config, processor handler.Processor, m *metrics.Metrics) *gin.Engine {
	invoiceHandler := handler.NewInvoiceHandler(processor, cfg.Server.MaxUploadBytes, cfg.IsDevelopment())
	healthHandler := handler.NewHealthHandler(cfg.Server.Environment)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoMethod(handler.MethodNotAllowed)
	router.MaxMultipartMemory = cfg.Server.MaxUploadBytes

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS())
	router.Use(noCacheMiddleware())
	router.Use(m.Middleware())

	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api")
	api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	{
		api.POST("/process-invoice", invoiceHandler.ProcessInvoice)
		api.GET("/locations", invoiceHandler.Locations)
	}

	return router
}

// noCacheMiddleware keeps API responses out of browser and proxy caches.
func noCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}
		c.Next()
	}
}
