// Package scoring fuses the gait, pedigree, condition and field-relative
// signals into one composite score.
//
// Absent signals never zero out the result: their weight is redistributed
// proportionally across whatever is present, so the final score is always
// computable, down to gait-only scoring.
package scoring

import (
	"github.com/gaitlab/paddock/internal/domain/conditions"
	"github.com/gaitlab/paddock/internal/domain/gait"
	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/internal/domain/types"
)

// Default composite weights. The gait reading stays the dominant signal.
const (
	defaultGaitWeight      = 0.50
	defaultPedigreeWeight  = 0.20
	defaultConditionWeight = 0.15
	defaultRelativeWeight  = 0.15

	neutralScore = 50.0
	maxScore     = 100.0
)

// Scorer computes composite scores under a fixed weight configuration.
type Scorer struct {
	weights map[types.Signal]float64
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights sets signal weights from a configuration map keyed by
// signal name (gait, pedigree, condition, relative).
func WithWeights(weights map[string]float64) Option {
	return func(s *Scorer) {
		for name, w := range weights {
			if w < 0 {
				continue
			}
			switch types.Signal(name) {
			case types.SignalGait, types.SignalPedigree, types.SignalCondition, types.SignalRelative:
				s.weights[types.Signal(name)] = w
			}
		}
	}
}

// New creates a Scorer with the default weights.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		weights: map[types.Signal]float64{
			types.SignalGait:      defaultGaitWeight,
			types.SignalPedigree:  defaultPedigreeWeight,
			types.SignalCondition: defaultConditionWeight,
			types.SignalRelative:  defaultRelativeWeight,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Inputs carries the four signals for one horse. Relative is nil when no
// field-relative estimate exists.
type Inputs struct {
	Gait     model.GaitMetrics
	Pedigree model.PedigreeSummary
	// ConditionMatch is the [0,1] compatibility score.
	ConditionMatch float64
	// ConditionNeutral marks a match that is 0.5 only because there was
	// no history or pedigree to compare against; such a value is treated
	// as an absent signal, not a real observation.
	ConditionNeutral bool
	Relative         *model.RelativeProbabilities
	FieldSize        int
	Target           model.RaceConditions
}

// signalValue is one present signal's weight and 0-100 value.
type signalValue struct {
	weight float64
	value  float64
}

// Score fuses the inputs into a CompositeScore. Absent signals are simply
// omitted from the sparse weight map; the division by the remaining weight
// sum is the proportional redistribution.
func (s *Scorer) Score(in Inputs) model.CompositeScore {
	present := make(map[types.Signal]signalValue, 4)

	gaitScore := gait.Score(in.Gait)
	if in.Gait.Present() {
		present[types.SignalGait] = signalValue{weight: s.weights[types.SignalGait], value: gaitScore}
	}

	pedigreeScore := s.pedigreeScore(in.Pedigree, in.Target)
	if in.Pedigree.Present {
		present[types.SignalPedigree] = signalValue{weight: s.weights[types.SignalPedigree], value: pedigreeScore}
	}

	conditionScore := maxScore * clamp(in.ConditionMatch, 0, 1)
	if !in.ConditionNeutral {
		present[types.SignalCondition] = signalValue{weight: s.weights[types.SignalCondition], value: conditionScore}
	}

	var relative model.RelativeProbabilities
	relativeAvailable := in.Relative != nil
	if relativeAvailable {
		relative = *in.Relative
	}
	// A singleton field has no comparison value; the trivial 1.0/rank=1
	// distribution is reported but does not contribute to the score.
	if relativeAvailable && in.FieldSize >= 2 {
		present[types.SignalRelative] = signalValue{
			weight: s.weights[types.SignalRelative],
			value:  relativeScore(relative.Win, in.FieldSize),
		}
	}

	var weightSum, valueSum float64
	inputsUsed := make(map[types.Signal]bool, len(present))
	for sig, sv := range present {
		inputsUsed[sig] = true
		weightSum += sv.weight
		valueSum += sv.weight * sv.value
	}

	final := neutralScore
	if weightSum > 0 {
		final = valueSum / weightSum
	}

	return model.CompositeScore{
		GaitScore:         gaitScore,
		PedigreeScore:     pedigreeScore,
		ConditionMatch:    in.ConditionMatch,
		Relative:          relative,
		FinalScore:        clamp(final, 0, maxScore),
		InputsUsed:        inputsUsed,
		RelativeAvailable: relativeAvailable,
		GaitSource:        in.Gait.Source,
		GaitConfidence:    in.Gait.Confidence,
	}
}

// pedigreeScore measures how well the pedigree's preferred-condition tags
// line up with the target race. A present pedigree with no target overlap
// is neutral, not penalized.
func (s *Scorer) pedigreeScore(p model.PedigreeSummary, target model.RaceConditions) float64 {
	if !p.Present {
		return 0
	}

	targetTags := types.NewTagSet()
	if target.Surface != types.SurfaceUnknown && target.Surface != "" {
		targetTags.Add(string(target.Surface))
	}
	if band := conditions.DistanceBand(target.DistanceMeters); band != "" {
		targetTags.Add(band)
	}
	if target.Footing != types.FootingUnknown && target.Footing != "" {
		targetTags.Add(string(target.Footing))
	}
	for tag := range target.TrackFeatures {
		targetTags.Add(tag)
	}

	if targetTags.Len() == 0 {
		return neutralScore
	}

	hitRatio := float64(p.BestConditionTags.Overlap(targetTags)) / float64(targetTags.Len())
	return clamp(maxScore*(0.5+0.5*hitRatio), 0, maxScore)
}

// relativeScore maps a win probability onto 0-100 against the uniform
// 1/fieldSize baseline: scoring at the baseline is neutral, twice the
// baseline saturates the scale.
func relativeScore(win float64, fieldSize int) float64 {
	if fieldSize < 1 {
		return neutralScore
	}
	return clamp(neutralScore*win*float64(fieldSize), 0, maxScore)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
