package monitor

import (
	"context"
	"math"
	"sort"

	"github.com/rewired-gh/marketpulse/internal/logger"
	"github.com/rewired-gh/marketpulse/internal/models"
	"github.com/rewired-gh/marketpulse/internal/scoring"
)

// RepeatTolerance is the minimum change in move magnitude, in percentage
// points, before a ticker is alerted again on the same day.
const RepeatTolerance = 0.5

// CheckAlerts compares the intraday move from open of every portfolio and
// watchlist ticker against the alert threshold. Moves already recorded today
// at a similar magnitude are suppressed. Alerts are ordered by move size.
// Returned alerts are not recorded; call RecordAlerts once they are delivered.
func (m *Monitor) CheckAlerts(ctx context.Context, day string) []models.Alert {
	start := m.now()
	defer m.recorder.ObserveDuration("alerts", start)

	if m.storage != nil {
		if purged := m.storage.CleanupAlerts(day); purged > 0 {
			logger.Debug("Purged alert records for %d past days", purged)
		}
	}

	var alerts []models.Alert
	for _, ticker := range m.config.AlertTickers() {
		if ctx.Err() != nil {
			break
		}
		symbol := m.config.Resolve(ticker)
		open, last, ok := m.prices.IntradayOpenLast(ctx, symbol)
		if !ok || open == 0 {
			logger.Debug("No intraday data for %s (%s)", ticker, symbol)
			continue
		}
		pct := (last - open) / open * 100.0
		if math.Abs(pct) < m.config.AlertThreshold {
			continue
		}
		if m.storage != nil {
			if prior, seen := m.storage.LastAlert(day, ticker); seen && math.Abs(math.Abs(pct)-math.Abs(prior)) < RepeatTolerance {
				logger.Debug("Suppressed repeat alert for %s: %+.2f%% (last %+.2f%%)", ticker, pct, prior)
				m.recorder.RecordAlert(false)
				continue
			}
		}

		alerts = append(alerts, m.buildAlert(ctx, ticker, symbol, open, last, pct))
		m.recorder.RecordAlert(true)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return math.Abs(alerts[i].PctFromOpen) > math.Abs(alerts[j].PctFromOpen)
	})

	logger.Info("Alert check for %s: %d alerts", day, len(alerts))
	return alerts
}

// RecordAlerts stores the delivered moves so later checks on the same day
// can suppress repeats.
func (m *Monitor) RecordAlerts(day string, alerts []models.Alert) {
	if m.storage == nil {
		return
	}
	for _, a := range alerts {
		m.storage.RecordAlert(day, a.Ticker, a.PctFromOpen)
	}
}

// buildAlert enriches a triggered move with headlines and a horizon level.
func (m *Monitor) buildAlert(ctx context.Context, ticker, symbol string, open, last, pct float64) models.Alert {
	var headlines []models.NewsItem
	if m.news != nil && m.config.NewsLimit > 0 {
		headlines = m.news.News(ctx, symbol, m.config.NewsLimit)
	}

	history := m.prices.History(ctx, symbol, m.config.RSPeriod)
	volRatio := 1.0
	if ratio, ok := history.VolumeRatio(history.Last(), volumeWindow); ok {
		volRatio = ratio
	}
	pct1D, _ := history.ReturnPct(history.Last(), 1)

	return models.Alert{
		Ticker:      ticker,
		Symbol:      symbol,
		Name:        m.config.DisplayName(ticker),
		Open:        open,
		Last:        last,
		PctFromOpen: pct,
		Movement:    scoring.MovementClass(&pct, volRatio, m.config.AlertThreshold),
		Level:       scoring.PickLevel(pct, pct1D, volRatio, len(headlines) > 0, 0),
		Why:         scoring.WhyFromHeadlines(headlines),
		News:        headlines,
		DetectedAt:  m.now().In(m.config.Location),
	}
}
