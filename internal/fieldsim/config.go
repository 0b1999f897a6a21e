// Package fieldsim generates synthetic paddock fields and runs them
// through the full evaluation pipeline in-process, verifying the scoring
// invariants hold under partial signal coverage.
package fieldsim

// Config controls one simulation run.
type Config struct {
	// Horses is the field size including the subject.
	Horses int
	// SignalCoverage is the fraction of horses given a telemetry signal
	// file, in [0,1].
	SignalCoverage float64
	// PedigreeCoverage is the fraction of horses given pedigree text.
	PedigreeCoverage float64
	// Seed makes runs reproducible.
	Seed int64
	// Verbose enables per-horse result logging.
	Verbose bool
}

// DefaultConfig returns the standard simulation parameters.
func DefaultConfig() *Config {
	return &Config{
		Horses:           8,
		SignalCoverage:   0.75,
		PedigreeCoverage: 0.5,
		Seed:             1,
	}
}
