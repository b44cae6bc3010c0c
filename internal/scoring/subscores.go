package scoring

import (
	"math"

	"github.com/rewired-gh/marketpulse/internal/models"
)

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func present(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// MomentumScore saturates at an 8% daily move in either direction.
func MomentumScore(pct1D *float64) float64 {
	if !present(pct1D) {
		return 0
	}
	return clamp(math.Abs(*pct1D)/8.0*10.0, 0, 10)
}

// RSScore maps relative strength in [-5%, +5%] onto [0, 10].
func RSScore(rs *float64) float64 {
	if !present(rs) {
		return 0
	}
	return clamp(*rs+5.0, 0, 10)
}

// VolScore is zero at normal volume and saturates near 2.67x.
func VolScore(volRatio float64) float64 {
	return clamp((volRatio-1.0)*6.0, 0, 10)
}

func CatalystScore(newsCount int) float64 {
	if newsCount <= 0 {
		return 0
	}
	return clamp(2.0+2.0*float64(newsCount), 0, 10)
}

func RegimeScore(label models.RegimeLabel) float64 {
	switch label {
	case models.RiskOn:
		return 10
	case models.RiskOff:
		return 0
	default:
		return 5
	}
}

// Compute returns all five sub-scores for one ticker.
func Compute(pct1D, rs *float64, volRatio float64, newsCount int, regime models.RegimeLabel) models.SubScores {
	return models.SubScores{
		Momentum:     MomentumScore(pct1D),
		RelStrength:  RSScore(rs),
		VolumeScore:  VolScore(volRatio),
		Catalyst:     CatalystScore(newsCount),
		MarketRegime: RegimeScore(regime),
	}
}
