package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cxr-report-server/internal/domain"
	"github.com/cxr-report-server/internal/middleware"
	"github.com/cxr-report-server/internal/service"
)

// Server represents the HTTP server
type Server struct {
	config    *domain.Config
	logger    *logrus.Logger
	reports   domain.ReportStore
	cases     domain.CaseStore
	extractor domain.FeatureExtractor
	pipeline  *service.ReportService
	tokens    *middleware.TokenService
	router    *gin.Engine
	server    *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(
	config *domain.Config,
	logger *logrus.Logger,
	pipeline *service.ReportService,
	extractor domain.FeatureExtractor,
	reports domain.ReportStore,
	cases domain.CaseStore,
) *Server {
	// Set Gin mode based on environment
	if config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.CORS(config.Server.AllowedOrigin))
	router.Use(middleware.RequestTimeout(config.Server.WriteTimeout))

	server := &Server{
		config:    config,
		logger:    logger,
		reports:   reports,
		cases:     cases,
		extractor: extractor,
		pipeline:  pipeline,
		tokens:    middleware.NewTokenService(config.Auth),
		router:    router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Router exposes the configured handler, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// Token issuance, only reachable when auth is configured
	s.router.POST("/auth/token", s.handleIssueToken)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.RequireAuth(s.tokens))
	{
		v1.POST("/reports/image", s.handleGenerateFromImage)
		v1.POST("/reports/predictions", s.handleGenerateFromPredictions)
		v1.POST("/reports/features", s.handleGenerateFromFeatures)
		v1.POST("/reports/legacy-csv", s.handleGenerateFromLegacyCSV)
		v1.POST("/features", s.handleExtractFeatures)
		v1.GET("/reports/recent", s.handleRecentReports)
		v1.GET("/cases/recent", s.handleRecentCases)
		v1.GET("/cases/:id", s.handleGetCase)
		v1.POST("/cases/:id/verification", s.handleSetVerification)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}
