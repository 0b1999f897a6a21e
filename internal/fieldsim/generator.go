package fieldsim

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/internal/domain/types"
)

// Gait value ranges for synthetic telemetry. Centered inside the scoring
// bands with enough spread to produce both strong and weak readings.
const (
	pitchMin  = 1.2
	pitchMax  = 3.4
	strideMin = 0.25
	strideMax = 0.85
	swayMin   = 0.05
	swayMax   = 0.50
	asymMin   = 0.01
	asymMax   = 0.30
)

var pedigreeSamples = []string{
	"By Deep Impact out of a Storm Cat mare; family known for turf stamina.",
	"Sire line traces to Mr. Prospector, pure speed, best at sprint trips.",
	"Galileo cross, stays all day, handles soft and heavy ground well.",
	"Tapit colt, dirt pedigree through and through, fast early.",
}

// GenerateField builds a synthetic analysis request with signal files on
// disk. The returned cleanup removes the temp directory.
func GenerateField(cfg *Config) (model.AnalysisRequest, func(), error) {
	rng := rand.New(rand.NewSource(cfg.Seed))

	dir, err := os.MkdirTemp("", "fieldsim-*")
	if err != nil {
		return model.AnalysisRequest{}, nil, fmt.Errorf("create signal dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	horses := make([]model.HorseEntry, 0, cfg.Horses)
	for i := 0; i < cfg.Horses; i++ {
		h := model.HorseEntry{
			ID:     fmt.Sprintf("horse-%02d", i+1),
			Name:   fmt.Sprintf("Simulated Runner %d", i+1),
			Rating: 40 + rng.Float64()*40,
		}

		if rng.Float64() < cfg.SignalCoverage {
			path := filepath.Join(dir, h.ID+".json")
			if err := writeSignalFile(rng, path); err != nil {
				cleanup()
				return model.AnalysisRequest{}, nil, err
			}
			h.SignalPath = path
		}
		if rng.Float64() < cfg.PedigreeCoverage {
			h.PedigreeText = pedigreeSamples[rng.Intn(len(pedigreeSamples))]
		}
		h.History = synthesizeHistory(rng)

		horses = append(horses, h)
	}

	req := model.AnalysisRequest{
		Subject:   horses[0],
		Opponents: horses[1:],
		Target: model.RaceConditions{
			DistanceMeters: 1600,
			Surface:        types.SurfaceTurf,
			Footing:        types.FootingGood,
			TurnDirection:  types.TurnRight,
			TrackFeatures:  types.NewTagSet("tight-turn"),
		},
	}
	return req, cleanup, nil
}

func writeSignalFile(rng *rand.Rand, path string) error {
	payload := map[string]float64{
		"pitch_hz":            spread(rng, pitchMin, pitchMax),
		"stride_index":        spread(rng, strideMin, strideMax),
		"wobble_ratio_0_1":    spread(rng, swayMin, swayMax),
		"lr_asymmetry_ratio":  spread(rng, asymMin, asymMax),
		"fatigue_0_1":         rng.Float64() * 0.6,
		"quality_score_0_100": 40 + rng.Float64()*60,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func synthesizeHistory(rng *rand.Rand) []model.RaceHistoryEntry {
	n := rng.Intn(4)
	out := make([]model.RaceHistoryEntry, 0, n)
	for i := 0; i < n; i++ {
		fieldSize := 8 + rng.Intn(8)
		surface := types.SurfaceTurf
		if rng.Float64() < 0.3 {
			surface = types.SurfaceDirt
		}
		out = append(out, model.RaceHistoryEntry{
			Conditions: model.RaceConditions{
				DistanceMeters: 1200 + 200*rng.Intn(6),
				Surface:        surface,
				TurnDirection:  types.TurnRight,
				TrackFeatures:  types.NewTagSet(),
			},
			FinishRank: 1 + rng.Intn(fieldSize),
			FieldSize:  fieldSize,
		})
	}
	return out
}

func spread(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
