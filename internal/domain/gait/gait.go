// Package gait reconciles embedded and external gait readings into one
// canonical metric set and turns it into a 0-100 gait score.
package gait

import (
	"math"

	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/internal/domain/types"
)

// Saturation bands for raw gait measurements. Values outside a band clamp
// to its edge; inside, the sub-score is linear.
const (
	pitchLow   = 1.8 // Hz; slower cadence scores higher
	pitchHigh  = 2.8
	strideLow  = 0.35
	strideHigh = 0.75
	swayLow    = 0.12
	swayHigh   = 0.40
	asymLow    = 0.03
	asymHigh   = 0.20
)

// Sub-metric shares of the gait score.
const (
	pitchWeight   = 0.18
	strideWeight  = 0.30
	swayWeight    = 0.22
	asymWeight    = 0.18
	fatigueWeight = 0.12
)

// Reconcile merges an optional embedded and an optional external reading.
//
// Both present: each field comes from the source with the higher
// self-reported confidence; ties prefer the embedded reading. The result is
// tagged Merged with confidence max(embedded, external).
// One present: passed through unchanged with its original tag.
// Neither: the zero-confidence sentinel.
func Reconcile(embedded, external *model.GaitMetrics) model.GaitMetrics {
	switch {
	case embedded == nil && external == nil:
		return Sentinel()
	case external == nil:
		return *embedded
	case embedded == nil:
		return *external
	}

	pick := func(emb, ext float64) float64 {
		if external.Confidence > embedded.Confidence {
			return ext
		}
		return emb
	}

	return model.GaitMetrics{
		PitchRate:          pick(embedded.PitchRate, external.PitchRate),
		StrideLength:       pick(embedded.StrideLength, external.StrideLength),
		SwayIndex:          pick(embedded.SwayIndex, external.SwayIndex),
		LeftRightAsymmetry: pick(embedded.LeftRightAsymmetry, external.LeftRightAsymmetry),
		FatigueSignal:      pick(embedded.FatigueSignal, external.FatigueSignal),
		Source:             types.SourceMerged,
		Confidence:         math.Max(embedded.Confidence, external.Confidence),
	}
}

// Sentinel returns the defined-neutral metrics used when no reading exists.
// Confidence 0 tells the composite scorer to exclude gait entirely.
func Sentinel() model.GaitMetrics {
	return model.GaitMetrics{Source: types.SourceNone}
}

// SubScores maps each raw measurement into its 0-100 sub-score.
type SubScores struct {
	Pitch     float64
	Stride    float64
	Sway      float64
	Symmetry  float64
	Freshness float64
}

// Scores computes the per-metric sub-scores for m.
func Scores(m model.GaitMetrics) SubScores {
	return SubScores{
		Pitch:     100 * rev(sat(m.PitchRate, pitchLow, pitchHigh)),
		Stride:    100 * sat(m.StrideLength, strideLow, strideHigh),
		Sway:      100 * rev(sat(m.SwayIndex, swayLow, swayHigh)),
		Symmetry:  100 * rev(sat(m.LeftRightAsymmetry, asymLow, asymHigh)),
		Freshness: 100 * rev(clamp(m.FatigueSignal, 0, 1)),
	}
}

// Score combines the sub-scores into the 0-100 gait score, attenuated by
// the reading's confidence.
func Score(m model.GaitMetrics) float64 {
	if !m.Present() {
		return 0
	}
	s := Scores(m)
	raw := pitchWeight*s.Pitch +
		strideWeight*s.Stride +
		swayWeight*s.Sway +
		asymWeight*s.Symmetry +
		fatigueWeight*s.Freshness
	return clamp(raw*clamp(m.Confidence, 0, 1), 0, 100)
}

func sat(x, a, b float64) float64 {
	if b <= a {
		return 0
	}
	return clamp((x-a)/(b-a), 0, 1)
}

func rev(u float64) float64 { return 1 - u }

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
