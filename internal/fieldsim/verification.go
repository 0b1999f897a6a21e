package fieldsim

import (
	"fmt"
	"math"

	"github.com/gaitlab/paddock/internal/domain/model"
)

const probabilityTolerance = 1e-6

// verifyReport checks the pipeline invariants over one simulated run:
// every horse is scored, scores stay on the 0-100 scale, win probabilities
// sum to 1 and predicted ranks form a permutation of the field.
func verifyReport(report *model.AnalysisReport, fieldSize int) error {
	if len(report.Results) != fieldSize {
		return fmt.Errorf("expected %d results, got %d", fieldSize, len(report.Results))
	}

	var winSum float64
	seenRanks := make(map[int]bool, fieldSize)
	for _, r := range report.Results {
		if r.Score.FinalScore < 0 || r.Score.FinalScore > 100 {
			return fmt.Errorf("horse %s: final score %.2f out of range", r.HorseID, r.Score.FinalScore)
		}
		if !r.Score.RelativeAvailable {
			return fmt.Errorf("horse %s: no relative estimate for a full field", r.HorseID)
		}

		rel := r.Score.Relative
		if rel.Win < 0 || rel.Win > 1 || rel.Top3 < 0 || rel.Top3 > 1 || rel.Top5 < 0 || rel.Top5 > 1 {
			return fmt.Errorf("horse %s: probability out of range", r.HorseID)
		}
		winSum += rel.Win

		if rel.PredictedRank < 1 || rel.PredictedRank > fieldSize {
			return fmt.Errorf("horse %s: predicted rank %d out of range", r.HorseID, rel.PredictedRank)
		}
		if seenRanks[rel.PredictedRank] {
			return fmt.Errorf("horse %s: duplicate predicted rank %d", r.HorseID, rel.PredictedRank)
		}
		seenRanks[rel.PredictedRank] = true
	}

	if fieldSize >= 2 && math.Abs(winSum-1) > probabilityTolerance {
		return fmt.Errorf("win probabilities sum to %.6f, want 1", winSum)
	}
	return nil
}
