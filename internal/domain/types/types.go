// Package types contains common value types shared across the analysis
// pipeline: enums for race metadata, metric provenance and job states, and
// the normalized tag set used by pedigree and condition signals.
package types

import (
	"sort"
	"strings"
)

// Surface is the declared racing surface.
type Surface string

const (
	SurfaceTurf    Surface = "turf"
	SurfaceDirt    Surface = "dirt"
	SurfaceUnknown Surface = "unknown"
)

// Footing is the declared going/footing category.
type Footing string

const (
	FootingFirm    Footing = "firm"
	FootingGood    Footing = "good"
	FootingHeavy   Footing = "heavy"
	FootingUnknown Footing = "unknown"
)

// TurnDirection is the course turn direction.
type TurnDirection string

const (
	TurnLeft    TurnDirection = "left"
	TurnRight   TurnDirection = "right"
	TurnUnknown TurnDirection = "unknown"
)

// MetricSource identifies where a canonical gait reading came from.
type MetricSource string

const (
	SourceEmbedded MetricSource = "embedded"
	SourceExternal MetricSource = "external"
	SourceMerged   MetricSource = "merged"
	// SourceNone tags the zero-confidence sentinel used when neither
	// reading was available.
	SourceNone MetricSource = "none"
)

// ResolvedVia records which resolver strategy produced an opponent.
type ResolvedVia string

const (
	ResolvedExplicit       ResolvedVia = "explicit"
	ResolvedEntrantsText   ResolvedVia = "entrants_text"
	ResolvedURLExtraction  ResolvedVia = "url_extraction"
	ResolvedManualFallback ResolvedVia = "manual_fallback"
)

// JobState is the lifecycle state of one asynchronous AI job.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobTimedOut  JobState = "timed_out"
)

// Terminal reports whether the job state admits no further transitions.
func (s JobState) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobTimedOut:
		return true
	default:
		return false
	}
}

// Signal identifies one of the four composite score inputs.
type Signal string

const (
	SignalGait      Signal = "gait"
	SignalPedigree  Signal = "pedigree"
	SignalCondition Signal = "condition"
	SignalRelative  Signal = "relative"
)

// TagSet is a case-folded, deduplicated set of string tags.
type TagSet map[string]struct{}

// NewTagSet builds a TagSet from raw strings, folding case and trimming
// whitespace. Empty strings are dropped.
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the tag (case-insensitive).
func (s TagSet) Has(tag string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(tag))]
	return ok
}

// Add inserts a tag, folding case.
func (s TagSet) Add(tag string) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return
	}
	s[tag] = struct{}{}
}

// Overlap returns the number of tags present in both sets.
func (s TagSet) Overlap(other TagSet) int {
	n := 0
	for t := range s {
		if _, ok := other[t]; ok {
			n++
		}
	}
	return n
}

// Slice returns the tags in sorted order for stable output.
func (s TagSet) Slice() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of tags in the set.
func (s TagSet) Len() int { return len(s) }
