package pedigree

import (
	"strings"

	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/internal/domain/types"
)

// fallbackConfidence marks a heuristic summary as a weak reading.
const fallbackConfidence = 0.25

// fallbackRule maps bloodline and phrasing cues in raw pedigree text onto
// tendency and condition tags.
type fallbackRule struct {
	keywords  []string
	tendency  string
	condition string
}

var fallbackRules = []fallbackRule{
	{
		keywords:  []string{"sadler", "galileo", "deep impact", "sunday silence", "stamina", "stay"},
		tendency:  "stamina",
		condition: "route",
	},
	{
		keywords:  []string{"mr. prospector", "storm cat", "speightstown", "danzig", "speed", "sprint", "fast"},
		tendency:  "speed",
		condition: "sprint",
	},
	{
		keywords:  []string{"turf", "grass", "montjeu", "芝"},
		condition: "turf",
	},
	{
		keywords:  []string{"dirt", "mud", "a.p. indy", "tapit", "smart strike", "unbridled", "fappiano", "ダート"},
		condition: "dirt",
	},
}

// heuristicSummary estimates tendencies from the raw pedigree text when no
// analysis service is configured. The low confidence keeps it from ever
// overruling a real reading downstream.
func heuristicSummary(pedigreeText string) model.PedigreeSummary {
	text := strings.ToLower(pedigreeText)
	tendencies := types.NewTagSet()
	conditionTags := types.NewTagSet()

	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if !strings.Contains(text, kw) {
				continue
			}
			if rule.tendency != "" {
				tendencies.Add(rule.tendency)
			}
			if rule.condition != "" {
				conditionTags.Add(rule.condition)
			}
			break
		}
	}

	return model.PedigreeSummary{
		TendencyTags:      tendencies,
		BestConditionTags: conditionTags,
		FreeTextNotes:     "heuristic estimate from pedigree text",
		Confidence:        fallbackConfidence,
		Present:           true,
	}
}
