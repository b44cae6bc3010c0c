package scoring

import "github.com/rewired-gh/marketpulse/internal/models"

// Score bands shared by advice and the level picker.
const (
	HighScore = 7.5
	LowScore  = 3.0
)

const (
	AdviceRiskOffAccumulate = "Strong setup in a risk-off market: accumulate cautiously, small size"
	AdviceRiskOffReduce     = "Weak in a risk-off market: consider reducing exposure"
	AdviceRiskOffHold       = "Risk-off market: hold and wait for confirmation"
	AdviceAdd               = "Add/enter candidate"
	AdviceReduce            = "Reduce/sell candidate"
	AdviceHold              = "Neutral: hold"
)

// TotalScore is the weighted sum of the sub-scores. Weights are used as given
// and the result is not clamped.
func TotalScore(w models.WeightVector, s models.SubScores) float64 {
	var total float64
	for _, c := range models.Categories {
		total += w[c] * s.ByCategory(c)
	}
	return total
}

// AdviceSoft returns soft advice text conditioned on score and regime.
func AdviceSoft(score float64, regime models.RegimeLabel) string {
	if regime == models.RiskOff {
		switch {
		case score >= HighScore:
			return AdviceRiskOffAccumulate
		case score <= LowScore:
			return AdviceRiskOffReduce
		default:
			return AdviceRiskOffHold
		}
	}

	switch {
	case score >= HighScore:
		return AdviceAdd
	case score <= LowScore:
		return AdviceReduce
	default:
		return AdviceHold
	}
}
