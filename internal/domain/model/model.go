// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/gaitlab/paddock/internal/domain/types"
)

// GaitMetrics is the canonical per-horse gait reading. Values are raw
// measurements, not scores; scoring bands live in the gait package.
type GaitMetrics struct {
	// PitchRate is the gait cadence in Hz.
	PitchRate float64
	// StrideLength is the normalized step-length index.
	StrideLength float64
	// SwayIndex measures lateral instability.
	SwayIndex float64
	// LeftRightAsymmetry is the left/right imbalance ratio in [0,1].
	LeftRightAsymmetry float64
	// FatigueSignal is the fatigue indicator in [0,1].
	FatigueSignal float64

	Source     types.MetricSource
	Confidence float64
}

// Present reports whether the metrics carry any usable signal.
// A zero-confidence reading is the "exclude gait" sentinel.
func (g GaitMetrics) Present() bool {
	return g.Confidence > 0 && g.Source != types.SourceNone
}

// PedigreeSummary is the validated output of the pedigree AI.
// Present=false means the AI was skipped or its response was invalid;
// every other field is empty in that case.
type PedigreeSummary struct {
	TendencyTags      types.TagSet
	BestConditionTags types.TagSet
	FreeTextNotes     string
	Confidence        float64
	Present           bool
}

// AbsentPedigree returns the all-defaults summary used whenever the
// pedigree signal is skipped or rejected.
func AbsentPedigree() PedigreeSummary {
	return PedigreeSummary{
		TendencyTags:      types.NewTagSet(),
		BestConditionTags: types.NewTagSet(),
	}
}

// RaceConditions describes the declared conditions of one race.
// Derived once from race metadata and read-only thereafter.
type RaceConditions struct {
	DistanceMeters int
	Surface        types.Surface
	Footing        types.Footing
	ClassLevel     string
	TurnDirection  types.TurnDirection
	// TrackFeatures holds inferred course tags such as "tight-turn" or
	// "heavy-footing", scanned from free-text notes.
	TrackFeatures types.TagSet
}

// RaceHistoryEntry is one past race with its conditions and outcome.
type RaceHistoryEntry struct {
	Conditions RaceConditions
	// FinishRank is the 1-indexed finishing position; 0 if unknown.
	FinishRank int
	FieldSize  int
	Notes      string
}

// Opponent is one resolved member of the field besides the subject horse.
type Opponent struct {
	Identifier     string
	SourceVideoRef string // optional URL; empty when no footage exists
	// Rating carries a declared prior when the resolver strategy supplies
	// one (entrants text); 0 means undeclared.
	Rating      float64
	ResolvedVia types.ResolvedVia
}

// AIJob tracks one asynchronous gateway call from submission to a terminal
// state. Owned exclusively by the gateway for the lifetime of the call.
type AIJob struct {
	ID          string
	SubmittedAt time.Time
	State       types.JobState
	PollCount   int
}

// RelativeProbabilities are the field-relative placement estimates for one
// horse.
type RelativeProbabilities struct {
	Win           float64
	Top3          float64
	Top5          float64
	PredictedRank int
}

// CompositeScore is the final fused score for one horse. FinalScore is
// always computable from whatever subset of InputsUsed is non-empty.
type CompositeScore struct {
	GaitScore         float64
	PedigreeScore     float64
	ConditionMatch    float64
	Relative          RelativeProbabilities
	FinalScore        float64
	InputsUsed        map[types.Signal]bool
	RelativeAvailable bool
	GaitSource        types.MetricSource
	GaitConfidence    float64
}

// UsedSignals returns the contributing signals in a stable order.
func (c CompositeScore) UsedSignals() []types.Signal {
	order := []types.Signal{types.SignalGait, types.SignalPedigree, types.SignalCondition, types.SignalRelative}
	out := make([]types.Signal, 0, len(c.InputsUsed))
	for _, s := range order {
		if c.InputsUsed[s] {
			out = append(out, s)
		}
	}
	return out
}

// HorseEntry is one unit of analysis work: the subject horse or an opponent.
type HorseEntry struct {
	ID string
	// Name is the display identifier from the racecard or request.
	Name string
	// VideoRef is the public URL of the paddock video, if any.
	VideoRef string
	// VideoPath is a local path used by the embedded analyzer and the
	// multipart upload fallback.
	VideoPath string
	// SignalPath points at the on-device capture signal file, if present.
	SignalPath string
	// PedigreeText is the free-text pedigree (sire/dam/damsire) block.
	PedigreeText string
	// Rating is a declared 0-100 prior used when no video exists.
	Rating float64
	History []RaceHistoryEntry
}

// AnalysisRequest describes one evaluation run over a field.
type AnalysisRequest struct {
	RunID     string
	Subject   HorseEntry
	Opponents []HorseEntry
	// ExplicitOpponents short-circuits the opponent resolver chain.
	ExplicitOpponents []string
	// EntrantsText is a free-text entrants declaration ("name: rating" per
	// line); parsed when no explicit opponent list is given.
	EntrantsText string
	RaceRef      string
	Notes             string
	Target            RaceConditions
}

// HorseResult is the per-horse output of the analysis pipeline.
type HorseResult struct {
	HorseID   string
	Name      string
	Metrics   GaitMetrics
	Pedigree  PedigreeSummary
	Condition float64
	// ConditionNeutral marks a 0.5 returned only because there was no
	// signal to disagree with (empty history, absent pedigree).
	ConditionNeutral bool
	Score            CompositeScore
}

// AnalysisReport is the full outcome of one run.
type AnalysisReport struct {
	RunID string
	// ManualOpponentsRequired is set when every resolver strategy came up
	// empty and the caller must supply the field by hand.
	ManualOpponentsRequired bool
	Results                 []HorseResult
	StartedAt               time.Time
	Duration                time.Duration
}
