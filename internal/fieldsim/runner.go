package fieldsim

import (
	"context"
	"fmt"
	"time"

	app "github.com/gaitlab/paddock/internal/app"
	"github.com/gaitlab/paddock/internal/config"
	"github.com/gaitlab/paddock/pkg/logger"
)

// Run executes one complete simulation: generate a field, evaluate it
// through the real pipeline with no external collaborators configured, and
// verify the report invariants.
func Run(ctx context.Context, cfg *Config) error {
	log := logger.Get().Named("fieldsim")
	start := time.Now()

	log.Info(ctx, "starting field simulation",
		logger.Int("horses", cfg.Horses),
		logger.Float64("signal_coverage", cfg.SignalCoverage),
		logger.Float64("pedigree_coverage", cfg.PedigreeCoverage),
		logger.Any("seed", cfg.Seed),
	)

	req, cleanup, err := GenerateField(cfg)
	if err != nil {
		return fmt.Errorf("field generation failed: %w", err)
	}
	defer cleanup()

	svc := app.New(config.New(), app.WithLogger(log))
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("service start failed: %w", err)
	}
	defer svc.Stop()

	report, err := svc.Evaluate(ctx, req)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	if err := verifyReport(report, cfg.Horses); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if cfg.Verbose {
		for _, r := range report.Results {
			log.Info(ctx, "horse scored",
				logger.String("horse_id", r.HorseID),
				logger.Float64("final_score", r.Score.FinalScore),
				logger.Float64("win", r.Score.Relative.Win),
				logger.Int("predicted_rank", r.Score.Relative.PredictedRank),
				logger.Any("inputs_used", r.Score.UsedSignals()),
			)
		}
	}

	log.Info(ctx, "simulation passed",
		logger.String("run_id", report.RunID),
		logger.Int("horses", len(report.Results)),
		logger.Duration("duration", time.Since(start)),
	)
	return nil
}
