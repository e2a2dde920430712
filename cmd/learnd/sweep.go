package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harmonlabs/learnd/internal/config"
	"github.com/harmonlabs/learnd/internal/expectation"
	"github.com/harmonlabs/learnd/internal/logging"
	"github.com/harmonlabs/learnd/internal/store/sqlite"
)

var sweepHours int

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire stale pending expectations",
	Long: `Sweep transitions pending expectations overdue by more than the given
number of hours to expired, so stale predictions stay out of the
calibration score. Prints the number of rows affected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep()
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepHours, "hours", 48, "expire pending expectations overdue by more than this many hours")
}

func runSweep() error {
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

	calibrator, err := expectation.NewCalibrator(store, store, logger)
	if err != nil {
		return err
	}

	count, err := calibrator.ExpireOld(context.Background(), time.Duration(sweepHours)*time.Hour)
	if err != nil {
		return err
	}

	fmt.Printf("expired %d expectation(s)\n", count)
	return nil
}
