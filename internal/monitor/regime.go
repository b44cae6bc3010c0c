package monitor

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/marketpulse/internal/marketdata"
	"github.com/rewired-gh/marketpulse/internal/models"
)

// Regime thresholds, in percent.
const (
	TrendThreshold = 0.7
	VIXThreshold   = 10.0
	trendWindow    = 20
	vixLookback    = 5
)

// AssessRegime derives the market regime from the benchmark trend versus its
// 20-day average and the volatility index 5-day change. Missing series leave
// the label NEUTRAL and say so in the detail.
func AssessRegime(bench, vix *marketdata.Series) models.Regime {
	label := models.Neutral
	var details []string

	trend, trendOK := benchmarkTrend(bench)
	if trendOK {
		switch {
		case trend > TrendThreshold:
			label = models.RiskOn
		case trend < -TrendThreshold:
			label = models.RiskOff
		}
		details = append(details, fmt.Sprintf("benchmark %+.2f%% vs 20d avg", trend))
	} else {
		details = append(details, "benchmark trend unavailable")
	}

	vixChange, vixOK := vix.ReturnPct(vix.Last(), vixLookback)
	if vixOK {
		switch {
		case vixChange > VIXThreshold:
			label = models.RiskOff
		case vixChange < -VIXThreshold && label != models.RiskOff:
			label = models.RiskOn
		}
		details = append(details, fmt.Sprintf("volatility %+.1f%% over 5d", vixChange))
	} else {
		details = append(details, "volatility trend unavailable")
	}

	return models.Regime{Label: label, Detail: strings.Join(details, ", ")}
}

func benchmarkTrend(bench *marketdata.Series) (float64, bool) {
	end := bench.Last()
	avg, ok := bench.SMA(end, trendWindow)
	if !ok || avg == 0 {
		return 0, false
	}
	return (bench.Close[end] - avg) / avg * 100.0, true
}
