package scoring

import (
	"math"

	"github.com/rewired-gh/marketpulse/internal/models"
)

// PickLevel maps move size, volume, catalyst presence and score to a trading horizon.
// Missing moves should be passed as 0. The first matching rule wins.
func PickLevel(pctFromOpen, pct1D, volRatio float64, hasCatalyst bool, score float64) models.Level {
	intraday := math.Abs(pctFromOpen)
	daily := math.Abs(pct1D)

	if intraday >= 6 || (intraday >= 3 && volRatio >= HighVolumeRatio) {
		if intraday < 8 {
			return models.LevelDay
		}
		return models.LevelScalp
	}

	if daily >= 6 || (daily >= 3 && (hasCatalyst || volRatio >= 1.8)) {
		return models.LevelSwing
	}

	if score >= HighScore {
		return models.LevelPosition
	}

	// scores in [6.0, 7.5) land here too
	return models.LevelInvest
}
