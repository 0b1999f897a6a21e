// Command fieldsim runs a synthetic paddock field through the evaluation
// pipeline and verifies the scoring invariants.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gaitlab/paddock/internal/fieldsim"
	"github.com/gaitlab/paddock/pkg/logger"
)

func main() {
	cfg := fieldsim.DefaultConfig()
	flag.IntVar(&cfg.Horses, "horses", cfg.Horses, "field size including the subject")
	flag.Float64Var(&cfg.SignalCoverage, "signal-coverage", cfg.SignalCoverage, "fraction of horses with telemetry signal files")
	flag.Float64Var(&cfg.PedigreeCoverage, "pedigree-coverage", cfg.PedigreeCoverage, "fraction of horses with pedigree text")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	flag.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "log per-horse results")
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := fieldsim.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}
