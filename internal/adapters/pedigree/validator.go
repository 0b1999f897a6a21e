package pedigree

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/internal/domain/types"
)

// Pedigree replies are all-or-nothing: either the payload passes this
// schema in full or the pedigree signal is absent. Partially usable
// payloads are never salvaged. Unknown extra fields are tolerated.
const schemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["ok", "tendency_tags", "best_condition_tags", "notes"],
	"properties": {
		"ok": {"type": "boolean"},
		"tendency_tags": {"type": "array", "items": {"type": "string"}},
		"best_condition_tags": {"type": "array", "items": {"type": "string"}},
		"notes": {"type": "string"},
		"confidence_0_1": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

const defaultConfidence = 0.5

// reply is the decoded wire shape after validation.
type reply struct {
	OK                bool     `json:"ok"`
	TendencyTags      []string `json:"tendency_tags"`
	BestConditionTags []string `json:"best_condition_tags"`
	Notes             string   `json:"notes"`
	Confidence        *float64 `json:"confidence_0_1"`
}

// Validator enforces the pedigree reply contract.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded contract schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("pedigree.json", strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add pedigree schema: %w", err)
	}
	schema, err := compiler.Compile("pedigree.json")
	if err != nil {
		return nil, fmt.Errorf("compile pedigree schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Parse validates body against the contract and builds the summary. Any
// violation returns an error; callers map that to an absent pedigree.
func (v *Validator) Parse(body []byte) (model.PedigreeSummary, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return model.AbsentPedigree(), fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := v.schema.Validate(raw); err != nil {
		return model.AbsentPedigree(), fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	var r reply
	if err := json.Unmarshal(body, &r); err != nil {
		return model.AbsentPedigree(), fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if !r.OK {
		// The service answered but could not analyze this pedigree.
		return model.AbsentPedigree(), nil
	}

	confidence := defaultConfidence
	if r.Confidence != nil {
		confidence = *r.Confidence
	}

	return model.PedigreeSummary{
		TendencyTags:      types.NewTagSet(r.TendencyTags...),
		BestConditionTags: types.NewTagSet(r.BestConditionTags...),
		FreeTextNotes:     strings.TrimSpace(r.Notes),
		Confidence:        confidence,
		Present:           true,
	}, nil
}
