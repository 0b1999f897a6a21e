// Package pedigree obtains a structured pedigree summary for a horse.
//
// The remote analysis service answers a strict JSON contract; anything
// that deviates from it makes the whole pedigree signal absent rather than
// partially trusted. Without a configured service the adapter falls back
// to a low-confidence keyword heuristic over the raw text.
package pedigree

import (
	"context"

	"github.com/gaitlab/paddock/internal/adapters/gateway"
	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/pkg/logger"
	"github.com/gaitlab/paddock/pkg/metrics"
)

// Client summarizes pedigree text through the analysis service.
type Client struct {
	base      string
	apiKey    string
	gw        *gateway.Client
	validator *Validator
	log       logger.Logger
}

// New creates a Client. Either an empty baseURL or an empty apiKey keeps
// the remote service out of the loop; Summarize then uses the heuristic.
func New(baseURL, apiKey string, gw *gateway.Client, validator *Validator) *Client {
	return &Client{
		base:      baseURL,
		apiKey:    apiKey,
		gw:        gw,
		validator: validator,
		log:       logger.Named("pedigree"),
	}
}

// Summarize returns the pedigree summary for the given raw text. It never
// returns an error: empty text is absent, service trouble or a contract
// violation is absent, and a missing service key yields the heuristic.
func (c *Client) Summarize(ctx context.Context, pedigreeText string) model.PedigreeSummary {
	if pedigreeText == "" {
		return model.AbsentPedigree()
	}
	if c.base == "" || c.apiKey == "" {
		return heuristicSummary(pedigreeText)
	}

	res := c.gw.PostJSON(ctx, c.base+"/pedigree", map[string]string{"pedigree_text": pedigreeText})
	if !res.IsOK() {
		c.log.Warn(ctx, "pedigree analysis unavailable",
			logger.String("outcome", string(res.Outcome)),
			logger.String("detail", res.Detail),
		)
		metrics.RecordSignalDegraded("pedigree")
		return model.AbsentPedigree()
	}

	summary, err := c.validator.Parse(res.Body)
	if err != nil {
		c.log.Warn(ctx, "pedigree reply rejected", logger.Error(err))
		metrics.RecordSignalDegraded("pedigree")
		return model.AbsentPedigree()
	}
	return summary
}
