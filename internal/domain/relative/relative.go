// Package relative estimates per-horse win and placement probabilities
// relative to the rest of the field.
package relative

import (
	"math"
	"sort"

	"github.com/gaitlab/paddock/internal/domain/gait"
	"github.com/gaitlab/paddock/internal/domain/model"
)

// Strength shares of the gait sub-scores and the condition match.
const (
	pitchShare     = 0.30
	strideShare    = 0.25
	swayShare      = 0.15
	symmetryShare  = 0.15
	freshnessShare = 0.05
	conditionShare = 0.10

	neutralSubScore    = 50.0
	defaultTemperature = 12.0
)

// FieldEntry is one horse's input to the field-relative estimate.
type FieldEntry struct {
	HorseID        string
	Metrics        model.GaitMetrics
	ConditionMatch float64 // in [0,1]
	// Rating is a declared 0-100 prior; it stands in for gait strength
	// when the horse has no reading at all.
	Rating float64
}

// Estimator converts a field's strengths into placement probabilities.
type Estimator struct {
	temperature float64
}

// Option applies a configuration option to the Estimator.
type Option func(*Estimator)

// WithTemperature sets the softmax temperature. Larger values flatten the
// distribution.
func WithTemperature(t float64) Option {
	return func(e *Estimator) {
		if t > 0 {
			e.temperature = t
		}
	}
}

// New creates an Estimator with the default temperature.
func New(opts ...Option) *Estimator {
	e := &Estimator{temperature: defaultTemperature}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate returns win/top-3/top-5 probabilities and a predicted rank per
// horse. Win probabilities sum to 1 across the field. Top-K probabilities
// come from a sequential order-statistics approximation over the same
// strengths, never from simulation. A field of one is the trivial
// distribution; an empty field is ErrInsufficientField.
func (e *Estimator) Estimate(field []FieldEntry) (map[string]model.RelativeProbabilities, error) {
	if len(field) == 0 {
		return nil, ErrInsufficientField
	}

	out := make(map[string]model.RelativeProbabilities, len(field))
	if len(field) == 1 {
		out[field[0].HorseID] = model.RelativeProbabilities{Win: 1, Top3: 1, Top5: 1, PredictedRank: 1}
		return out, nil
	}

	strengths := make([]float64, len(field))
	for i, f := range field {
		strengths[i] = strengthFor(f)
	}

	// Plackett-Luce weights; softmax over strength/temperature. The max
	// shift keeps exp well-conditioned and cancels in the ratio.
	maxS := strengths[0]
	for _, s := range strengths[1:] {
		if s > maxS {
			maxS = s
		}
	}
	weights := make([]float64, len(strengths))
	for i, s := range strengths {
		weights[i] = math.Exp((s - maxS) / e.temperature)
	}

	win := normalize(weights)
	top3 := topK(weights, 3)
	top5 := topK(weights, 5)
	ranks := predictedRanks(field, strengths)

	for i, f := range field {
		out[f.HorseID] = model.RelativeProbabilities{
			Win:           win[i],
			Top3:          top3[i],
			Top5:          top5[i],
			PredictedRank: ranks[i],
		}
	}
	return out, nil
}

// strengthFor substitutes the declared rating for gait strength when a
// horse has no reading; otherwise it defers to Strength.
func strengthFor(f FieldEntry) float64 {
	if !f.Metrics.Present() && f.Rating > 0 {
		return (1-conditionShare)*f.Rating + conditionShare*100*clamp01(f.ConditionMatch)
	}
	return Strength(f.Metrics, f.ConditionMatch)
}

// Strength is the fixed linear combination of gait sub-scores and the
// condition match, on a 0-100 scale. Absent gait readings contribute the
// neutral sub-score on every axis.
func Strength(m model.GaitMetrics, conditionMatch float64) float64 {
	sub := gait.SubScores{
		Pitch:     neutralSubScore,
		Stride:    neutralSubScore,
		Sway:      neutralSubScore,
		Symmetry:  neutralSubScore,
		Freshness: neutralSubScore,
	}
	if m.Present() {
		sub = gait.Scores(m)
	}
	return pitchShare*sub.Pitch +
		strideShare*sub.Stride +
		swayShare*sub.Sway +
		symmetryShare*sub.Symmetry +
		freshnessShare*sub.Freshness +
		conditionShare*100*clamp01(conditionMatch)
}

func normalize(weights []float64) []float64 {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	out := make([]float64, len(weights))
	if sum == 0 {
		for i := range out {
			out[i] = 1 / float64(len(weights))
		}
		return out
	}
	for i, w := range weights {
		out[i] = w / sum
	}
	return out
}

// topK approximates P(finish in the top k) under a Plackett-Luce model by
// sequentially awarding each position in expectation: at every round each
// horse claims the position with probability proportional to its remaining
// (unplaced) weight mass. Exact for k=1; Σ over the field equals min(k, n).
func topK(weights []float64, k int) []float64 {
	n := len(weights)
	placed := make([]float64, n)
	if k >= n {
		for i := range placed {
			placed[i] = 1
		}
		return placed
	}
	for round := 0; round < k; round++ {
		var total float64
		for i, w := range weights {
			total += (1 - placed[i]) * w
		}
		if total == 0 {
			break
		}
		// P(i takes this position) given it is still unplaced.
		for i, w := range weights {
			placed[i] += (1 - placed[i]) * w / total
		}
	}
	for i := range placed {
		placed[i] = clamp01(placed[i])
	}
	return placed
}

// predictedRanks orders the field by strength descending. Ties break by
// lower left/right asymmetry, then by stable input order.
func predictedRanks(field []FieldEntry, strengths []float64) []int {
	idx := make([]int, len(field))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if strengths[ia] != strengths[ib] {
			return strengths[ia] > strengths[ib]
		}
		return field[ia].Metrics.LeftRightAsymmetry < field[ib].Metrics.LeftRightAsymmetry
	})
	ranks := make([]int, len(field))
	for pos, i := range idx {
		ranks[i] = pos + 1
	}
	return ranks
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
