// Package httpapi exposes the learning core over HTTP.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/harmonlabs/learnd/internal/correction"
	"github.com/harmonlabs/learnd/internal/expectation"
	"github.com/harmonlabs/learnd/internal/outcome"
	"github.com/harmonlabs/learnd/internal/preference"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server wires the learning services into an HTTP surface.
type Server struct {
	echo       *echo.Echo
	tracker    *outcome.Tracker
	detector   *correction.Detector
	learner    *preference.Learner
	calibrator *expectation.Calibrator
	logger     *zap.Logger
	config     *Config

	// minPromptConfidence is the confidence floor applied by the
	// prompt-formatting endpoint.
	minPromptConfidence float64
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(tracker *outcome.Tracker, detector *correction.Detector, learner *preference.Learner, calibrator *expectation.Calibrator, minPromptConfidence float64, logger *zap.Logger, cfg *Config) (*Server, error) {
	if tracker == nil {
		return nil, fmt.Errorf("tracker cannot be nil")
	}
	if detector == nil {
		return nil, fmt.Errorf("detector cannot be nil")
	}
	if learner == nil {
		return nil, fmt.Errorf("learner cannot be nil")
	}
	if calibrator == nil {
		return nil, fmt.Errorf("calibrator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9823}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewMetrics(logger).Middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:                e,
		tracker:             tracker,
		detector:            detector,
		learner:             learner,
		calibrator:          calibrator,
		logger:              logger,
		config:              cfg,
		minPromptConfidence: minPromptConfidence,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")

	v1.POST("/actions", s.handleTrackAction)
	v1.POST("/actions/:id/outcome", s.handleRecordOutcome)
	v1.POST("/actions/:id/feedback", s.handleRecordFeedback)

	v1.POST("/corrections/detect", s.handleDetectQuick)
	v1.POST("/corrections/process", s.handleProcessCorrection)

	v1.GET("/preferences", s.handleListPreferences)
	v1.GET("/preferences/prompt", s.handlePreferencesPrompt)
	v1.GET("/preferences/:category/:key", s.handleGetPreference)
	v1.GET("/preferences/:category/:key/history", s.handlePreferenceHistory)

	v1.POST("/expectations", s.handleCreateExpectation)
	v1.POST("/expectations/:id/evaluate", s.handleEvaluateExpectation)
	v1.GET("/expectations/pending", s.handlePendingExpectations)
	v1.GET("/expectations/overdue", s.handleOverdueExpectations)
	v1.POST("/expectations/expire", s.handleExpireExpectations)

	v1.GET("/calibration", s.handleCalibration)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
