package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cxr-report-server/internal/api"
	"github.com/cxr-report-server/internal/config"
	"github.com/cxr-report-server/internal/repository"
	"github.com/cxr-report-server/internal/service"
	"github.com/cxr-report-server/pkg/external"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)

	// Section mapping, with optional live reloading
	mapping := config.NewMappingLoader(cfg.Mapping.Path, logger)
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	if cfg.Mapping.Watch {
		if err := mapping.Watch(stopWatch); err != nil {
			logger.WithError(err).Warn("Mapping file watcher could not be started")
		}
	}

	// Stores
	reportStore := repository.NewFileReportStore(cfg.Storage.ReportsDir, logger)
	caseStore, err := repository.NewFileCaseStore(cfg.Storage.CasesDir, cfg.Storage.CaseCacheSize, logger)
	if err != nil {
		log.Fatalf("Failed to initialize case store: %v", err)
	}

	// Upstream clients behind circuit breakers
	clients := external.NewResilientClient(cfg.Inference, cfg.LLM, logger)

	// Pipeline
	pipeline := service.NewReportService(logger, clients, clients, clients, mapping, reportStore, caseStore, cfg.LLM)

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting CXR report server")

	// Create server
	server := api.NewServer(cfg, logger, pipeline, clients, reportStore, caseStore)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from the logging configuration.
func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if strings.ToLower(format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
