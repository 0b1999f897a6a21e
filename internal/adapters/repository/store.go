// Package repository defines the per-run field store: the reconciled gait
// readings and signal summaries for every horse in one analysis run.
package repository

import (
	"context"

	"github.com/gaitlab/paddock/internal/domain/model"
)

// Record is one horse's accumulated analysis state within a run.
type Record struct {
	HorseID  string
	Name     string
	Metrics  model.GaitMetrics
	Pedigree model.PedigreeSummary
	// ConditionMatch is the [0,1] compatibility with the target race.
	ConditionMatch   float64
	ConditionNeutral bool
	// Rating is the declared 0-100 prior; used in place of gait strength
	// when no reading exists for the horse.
	Rating float64
}

// Store provides read/write access to a run's field state. Workers write
// one record per horse; the scorer reads the whole field at the join point.
type Store interface {
	// Put stores or replaces the record for a horse.
	Put(ctx context.Context, rec Record) error

	// Get returns the record for a horse.
	// Returns ErrNotFound if the horse is unknown.
	Get(ctx context.Context, horseID string) (Record, error)

	// Field returns every record ordered by horse ID for deterministic
	// downstream iteration.
	Field(ctx context.Context) ([]Record, error)

	// Count returns the number of horses recorded.
	Count(ctx context.Context) int
}
