// Package conditions scores compatibility between a horse's historical
// tendencies and the declared conditions of a target race.
//
// The matcher is a deterministic, locked rule-based layer (not AI) so the
// resulting score can be audited component by component.
package conditions

import (
	"strings"

	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/internal/domain/types"
)

// Neutral is returned when there is no signal to disagree with.
const Neutral = 0.5

// Component names used in the weight map.
const (
	ComponentDistance = "distance"
	ComponentSurface  = "surface"
	ComponentFooting  = "footing"
	ComponentClass    = "class"
	ComponentTurn     = "turn"
	ComponentFeatures = "features"
)

// Outcome weights applied to history entries: good runs count more.
const (
	goodRunWeight = 1.5
	poorRunWeight = 0.75
	baseRunWeight = 1.0
)

// featureVocabulary maps note keywords to inferred course-feature tags.
// Unmatched text contributes no feature.
var featureVocabulary = []struct {
	keyword string
	tag     string
}{
	{"tight", "tight-turn"},
	{"small track", "tight-turn"},
	{"小回り", "tight-turn"},
	{"sweeping", "wide-turn"},
	{"wide turn", "wide-turn"},
	{"大回り", "wide-turn"},
	{"heavy", "heavy-footing"},
	{"soft", "heavy-footing"},
	{"mud", "heavy-footing"},
	{"sloppy", "heavy-footing"},
	{"不良", "heavy-footing"},
	{"firm", "firm-footing"},
	{"fast track", "firm-footing"},
	{"uphill", "uphill-finish"},
	{"long straight", "long-straight"},
}

// InferTrackFeatures scans free-text notes for the fixed course-feature
// vocabulary and returns the matched tags.
func InferTrackFeatures(notes string) types.TagSet {
	out := types.NewTagSet()
	t := strings.ToLower(notes)
	for _, v := range featureVocabulary {
		if strings.Contains(t, v.keyword) {
			out.Add(v.tag)
		}
	}
	return out
}

// DistanceBand buckets a distance into sprint / mile / route.
func DistanceBand(meters int) string {
	switch {
	case meters <= 0:
		return ""
	case meters <= 1400:
		return "sprint"
	case meters <= 1800:
		return "mile"
	default:
		return "route"
	}
}

// componentScore is one component's agreement with the target conditions.
// known=false means the target leaves this component unspecified and it is
// excluded from the weighted sum.
type componentScore struct {
	name      string
	known     bool
	agreement float64
}

// Matcher computes the condition compatibility score.
type Matcher struct {
	weights map[string]float64
}

// Option applies a configuration option to the Matcher.
type Option func(*Matcher)

// WithWeights overrides the component agreement weights.
func WithWeights(weights map[string]float64) Option {
	return func(m *Matcher) {
		if len(weights) == 0 {
			return
		}
		m.weights = make(map[string]float64, len(weights))
		for k, w := range weights {
			if w > 0 {
				m.weights[k] = w
			}
		}
	}
}

// New creates a Matcher with the fixed default weights.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		weights: map[string]float64{
			ComponentDistance: 0.25,
			ComponentSurface:  0.20,
			ComponentFooting:  0.15,
			ComponentClass:    0.10,
			ComponentTurn:     0.10,
			ComponentFeatures: 0.20,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match scores compatibility between the horse's history (plus pedigree
// tags) and the target race conditions in [0,1]. Components the target
// leaves Unknown are excluded and the remaining weights renormalized to
// sum to 1. With an empty history and an absent pedigree there is no
// signal to disagree with, so the result is Neutral; the second return
// value flags such signal-free results.
func (m *Matcher) Match(pedigree model.PedigreeSummary, history []model.RaceHistoryEntry, target model.RaceConditions) (float64, bool) {
	if len(history) == 0 && !pedigree.Present {
		return Neutral, true
	}

	comps := []componentScore{
		m.distanceComponent(pedigree, history, target),
		m.surfaceComponent(pedigree, history, target),
		m.footingComponent(pedigree, history, target),
		m.classComponent(history, target),
		m.turnComponent(history, target),
		m.featuresComponent(pedigree, history, target),
	}

	var sum, weightSum float64
	for _, c := range comps {
		if !c.known {
			continue
		}
		w := m.weights[c.name]
		sum += w * c.agreement
		weightSum += w
	}
	if weightSum == 0 {
		return Neutral, true
	}
	return clamp(sum/weightSum, 0, 1), false
}

// agreeOn computes the outcome-weighted share of past races whose value of
// one component matches the target, blended with a pedigree tag hit.
func agreeOn(history []model.RaceHistoryEntry, pedigree model.PedigreeSummary, pedigreeTag string,
	matches func(model.RaceHistoryEntry) (match, known bool)) (float64, bool) {
	var matched, total float64
	for _, e := range history {
		match, known := matches(e)
		if !known {
			continue
		}
		w := outcomeWeight(e)
		total += w
		if match {
			matched += w
		}
	}

	pedScore, pedKnown := pedigreeAffinity(pedigree, pedigreeTag)

	switch {
	case total > 0 && pedKnown:
		return 0.6*(matched/total) + 0.4*pedScore, true
	case total > 0:
		return matched / total, true
	case pedKnown:
		return pedScore, true
	default:
		return 0, false
	}
}

func pedigreeAffinity(pedigree model.PedigreeSummary, tag string) (float64, bool) {
	if !pedigree.Present || tag == "" {
		return 0, false
	}
	if pedigree.BestConditionTags.Has(tag) {
		return 1, true
	}
	if pedigree.BestConditionTags.Len() == 0 {
		// Pedigree observed but silent on conditions.
		return Neutral, true
	}
	// The pedigree names preferred conditions and this is not one of them.
	return 0.25, true
}

func outcomeWeight(e model.RaceHistoryEntry) float64 {
	if e.FinishRank > 0 && e.FinishRank <= 3 {
		return goodRunWeight
	}
	if e.FinishRank > 0 && e.FieldSize > 0 && e.FinishRank > e.FieldSize/2 {
		return poorRunWeight
	}
	return baseRunWeight
}

func (m *Matcher) distanceComponent(pedigree model.PedigreeSummary, history []model.RaceHistoryEntry, target model.RaceConditions) componentScore {
	band := DistanceBand(target.DistanceMeters)
	if band == "" {
		return componentScore{name: ComponentDistance}
	}
	a, known := agreeOn(history, pedigree, band, func(e model.RaceHistoryEntry) (bool, bool) {
		b := DistanceBand(e.Conditions.DistanceMeters)
		return b == band, b != ""
	})
	return componentScore{name: ComponentDistance, known: known, agreement: a}
}

func (m *Matcher) surfaceComponent(pedigree model.PedigreeSummary, history []model.RaceHistoryEntry, target model.RaceConditions) componentScore {
	if target.Surface == types.SurfaceUnknown || target.Surface == "" {
		return componentScore{name: ComponentSurface}
	}
	a, known := agreeOn(history, pedigree, string(target.Surface), func(e model.RaceHistoryEntry) (bool, bool) {
		s := e.Conditions.Surface
		return s == target.Surface, s != types.SurfaceUnknown && s != ""
	})
	return componentScore{name: ComponentSurface, known: known, agreement: a}
}

func (m *Matcher) footingComponent(pedigree model.PedigreeSummary, history []model.RaceHistoryEntry, target model.RaceConditions) componentScore {
	if target.Footing == types.FootingUnknown || target.Footing == "" {
		return componentScore{name: ComponentFooting}
	}
	a, known := agreeOn(history, pedigree, string(target.Footing), func(e model.RaceHistoryEntry) (bool, bool) {
		f := e.Conditions.Footing
		return f == target.Footing, f != types.FootingUnknown && f != ""
	})
	return componentScore{name: ComponentFooting, known: known, agreement: a}
}

func (m *Matcher) classComponent(history []model.RaceHistoryEntry, target model.RaceConditions) componentScore {
	if target.ClassLevel == "" {
		return componentScore{name: ComponentClass}
	}
	a, known := agreeOn(history, model.PedigreeSummary{}, "", func(e model.RaceHistoryEntry) (bool, bool) {
		c := e.Conditions.ClassLevel
		return strings.EqualFold(c, target.ClassLevel), c != ""
	})
	return componentScore{name: ComponentClass, known: known, agreement: a}
}

func (m *Matcher) turnComponent(history []model.RaceHistoryEntry, target model.RaceConditions) componentScore {
	if target.TurnDirection == types.TurnUnknown || target.TurnDirection == "" {
		return componentScore{name: ComponentTurn}
	}
	a, known := agreeOn(history, model.PedigreeSummary{}, "", func(e model.RaceHistoryEntry) (bool, bool) {
		t := e.Conditions.TurnDirection
		return t == target.TurnDirection, t != types.TurnUnknown && t != ""
	})
	return componentScore{name: ComponentTurn, known: known, agreement: a}
}

func (m *Matcher) featuresComponent(pedigree model.PedigreeSummary, history []model.RaceHistoryEntry, target model.RaceConditions) componentScore {
	if target.TrackFeatures.Len() == 0 {
		return componentScore{name: ComponentFeatures}
	}

	// Features seen before come from declared history conditions plus
	// whatever the entry notes imply.
	seen := types.NewTagSet()
	for _, e := range history {
		for tag := range e.Conditions.TrackFeatures {
			seen.Add(tag)
		}
		for tag := range InferTrackFeatures(e.Notes) {
			seen.Add(tag)
		}
	}
	if pedigree.Present {
		for tag := range pedigree.BestConditionTags {
			seen.Add(tag)
		}
	}
	if seen.Len() == 0 {
		return componentScore{name: ComponentFeatures}
	}

	overlap := float64(target.TrackFeatures.Overlap(seen)) / float64(target.TrackFeatures.Len())
	return componentScore{name: ComponentFeatures, known: true, agreement: overlap}
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
