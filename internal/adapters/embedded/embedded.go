// Package embedded reads the telemetry signal file recorded alongside a
// horse's paddock footage and turns it into an embedded gait reading.
package embedded

import (
	"context"
	"encoding/json"
	"os"

	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/internal/domain/types"
	"github.com/gaitlab/paddock/pkg/logger"
)

// Confidence mapping from the recorder's quality estimate.
const (
	confidenceFloor   = 0.65
	confidenceQuality = 0.35
)

// signalFile is the on-disk telemetry shape.
type signalFile struct {
	PitchHz      float64 `json:"pitch_hz"`
	StrideIndex  float64 `json:"stride_index"`
	WobbleRatio  float64 `json:"wobble_ratio_0_1"`
	LRAsymmetry  float64 `json:"lr_asymmetry_ratio"`
	Fatigue      float64 `json:"fatigue_0_1"`
	QualityScore float64 `json:"quality_score_0_100"`
}

// Reader loads embedded gait readings from signal files.
type Reader struct {
	log logger.Logger
}

// NewReader creates a Reader.
func NewReader() *Reader {
	return &Reader{log: logger.Named("embedded")}
}

// Read loads the signal file at path. A missing or malformed file means the
// embedded signal is absent; the pipeline falls back to the external
// reading. Returns nil, never an error.
func (r *Reader) Read(ctx context.Context, path string) *model.GaitMetrics {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		r.log.Warn(ctx, "signal file unreadable", logger.String("path", path), logger.Error(err))
		return nil
	}

	var sf signalFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		r.log.Warn(ctx, "signal file malformed", logger.String("path", path), logger.Error(err))
		return nil
	}

	q := sf.QualityScore / 100
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}

	return &model.GaitMetrics{
		PitchRate:          sf.PitchHz,
		StrideLength:       sf.StrideIndex,
		SwayIndex:          sf.WobbleRatio,
		LeftRightAsymmetry: sf.LRAsymmetry,
		FatigueSignal:      sf.Fatigue,
		Source:             types.SourceEmbedded,
		Confidence:         confidenceFloor + confidenceQuality*q,
	}
}
