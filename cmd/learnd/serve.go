package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harmonlabs/learnd/internal/classify"
	"github.com/harmonlabs/learnd/internal/config"
	"github.com/harmonlabs/learnd/internal/correction"
	"github.com/harmonlabs/learnd/internal/expectation"
	"github.com/harmonlabs/learnd/internal/httpapi"
	"github.com/harmonlabs/learnd/internal/logging"
	"github.com/harmonlabs/learnd/internal/outcome"
	"github.com/harmonlabs/learnd/internal/preference"
	"github.com/harmonlabs/learnd/internal/store/sqlite"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the learnd HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stdout sync failure is unactionable

	store, err := sqlite.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	classifier, err := classify.New(cfg.Classifier)
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}

	learner, err := preference.NewLearner(store, classifier,
		cfg.Learning.ReinforcementStep, cfg.Learning.OutcomeSeedConfidence, logger)
	if err != nil {
		return err
	}

	tracker, err := outcome.NewTracker(store, learner,
		cfg.Learning.QuickChangeWindow.Duration(), logger)
	if err != nil {
		return err
	}

	detector, err := correction.NewDetector(store, classifier, learner, logger)
	if err != nil {
		return err
	}

	calibrator, err := expectation.NewCalibrator(store, store, logger)
	if err != nil {
		return err
	}

	server, err := httpapi.NewServer(tracker, detector, learner, calibrator,
		cfg.Learning.MinPromptConfidence, logger,
		&httpapi.Config{Host: cfg.Server.Host, Port: cfg.Server.Port})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
