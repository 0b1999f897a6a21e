// Package racecard resolves the field of opponents for a race and parses
// declared race conditions from racecard text.
//
// Opponent resolution runs a strictly ordered fallback chain: an explicit
// list wins outright, then a declared entrants block, then extraction from
// the race reference page, and when everything comes up empty the caller
// is told manual entry is required.
// The chain never returns an error.
package racecard

import (
	"context"
	"strings"

	"github.com/gaitlab/paddock/internal/adapters/gateway"
	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/internal/domain/types"
	"github.com/gaitlab/paddock/pkg/logger"
)

// Resolution is the outcome of one resolver chain run.
type Resolution struct {
	Opponents []model.Opponent
	Via       types.ResolvedVia
	// ManualRequired is set when no strategy produced any opponent.
	ManualRequired bool
	// Conditions holds race metadata parsed from the reference page; only
	// meaningful when ConditionsKnown is set.
	Conditions      model.RaceConditions
	ConditionsKnown bool
}

// Resolver runs the opponent fallback chain.
type Resolver struct {
	gw           *gateway.Client
	maxOpponents int
	log          logger.Logger
}

// ResolverOption applies a configuration option to the Resolver.
type ResolverOption func(*Resolver)

// WithMaxOpponents caps the resolved field size.
func WithMaxOpponents(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxOpponents = n
		}
	}
}

// NewResolver creates a Resolver that fetches race references through gw.
func NewResolver(gw *gateway.Client, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		gw:           gw,
		maxOpponents: maxEntrants,
		log:          logger.Named("racecard"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs the chain: explicit list, then entrants text, then URL
// extraction, then the terminal manual-fallback state. The first strategy
// yielding at least one opponent wins.
func (r *Resolver) Resolve(ctx context.Context, raceRef string, explicit []string, entrantsText string) Resolution {
	if opponents := r.fromExplicit(explicit); len(opponents) > 0 {
		return Resolution{Opponents: opponents, Via: types.ResolvedExplicit}
	}

	if opponents := r.fromEntrantsText(entrantsText); len(opponents) > 0 {
		return Resolution{Opponents: opponents, Via: types.ResolvedEntrantsText}
	}

	if raceRef != "" {
		if res, ok := r.fromURL(ctx, raceRef); ok {
			return res
		}
	}

	r.log.Info(ctx, "opponent resolution exhausted, manual entry required",
		logger.String("race_ref", raceRef),
	)
	return Resolution{Via: types.ResolvedManualFallback, ManualRequired: true}
}

func (r *Resolver) fromExplicit(explicit []string) []model.Opponent {
	seen := make(map[string]struct{}, len(explicit))
	var out []model.Opponent
	for _, id := range explicit {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, model.Opponent{Identifier: id, ResolvedVia: types.ResolvedExplicit})
		if len(out) >= r.maxOpponents {
			break
		}
	}
	return out
}

// fromEntrantsText turns a declared entrants block into opponents carrying
// their ratings, feeding the strength prior for horses without footage.
func (r *Resolver) fromEntrantsText(text string) []model.Opponent {
	entrants := ParseEntrants(text)
	if len(entrants) > r.maxOpponents {
		entrants = entrants[:r.maxOpponents]
	}
	out := make([]model.Opponent, 0, len(entrants))
	for _, e := range entrants {
		out = append(out, model.Opponent{
			Identifier:  e.Name,
			Rating:      e.Rating,
			ResolvedVia: types.ResolvedEntrantsText,
		})
	}
	return out
}

func (r *Resolver) fromURL(ctx context.Context, raceRef string) (Resolution, bool) {
	res := r.gw.Get(ctx, raceRef)
	if !res.IsOK() {
		r.log.Warn(ctx, "race reference fetch failed",
			logger.String("race_ref", raceRef),
			logger.String("outcome", string(res.Outcome)),
			logger.String("detail", res.Detail),
		)
		return Resolution{}, false
	}

	page := string(res.Body)
	names := extractNames(page)
	if len(names) == 0 {
		return Resolution{}, false
	}
	if len(names) > r.maxOpponents {
		names = names[:r.maxOpponents]
	}

	opponents := make([]model.Opponent, 0, len(names))
	for _, name := range names {
		opponents = append(opponents, model.Opponent{
			Identifier:  name,
			ResolvedVia: types.ResolvedURLExtraction,
		})
	}

	return Resolution{
		Opponents:       opponents,
		Via:             types.ResolvedURLExtraction,
		Conditions:      ParseRaceConditions(page),
		ConditionsKnown: true,
	}, true
}
