// Package marketdata supplies prices and historical series to the scoring engine.
// Providers never return errors to the engine: absent data is nil or ok=false.
package marketdata

import (
	"context"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Provider is the price source consumed by the monitor and the learner.
type Provider interface {
	// DailyLastPrev returns the latest and previous daily close and a source tag.
	DailyLastPrev(ctx context.Context, symbol string) (last, prev *float64, source string)
	// IntradayOpenLast returns today's open and latest price.
	IntradayOpenLast(ctx context.Context, symbol string) (open, last float64, ok bool)
	// History returns daily closes and volumes for a period such as "1mo" or "9mo".
	History(ctx context.Context, symbol, period string) *Series
}

// SourceNone tags a ticker whose prices could not be fetched.
const SourceNone = "none"

// Series is a daily close/volume history ordered oldest first.
type Series struct {
	Dates  []time.Time
	Close  []float64
	Volume []float64
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Close)
}

// Last returns the index of the most recent bar.
func (s *Series) Last() int {
	return s.Len() - 1
}

// ReturnPct is the percentage change from close[end-n] to close[end].
func (s *Series) ReturnPct(end, n int) (float64, bool) {
	if s == nil || n <= 0 || end < n || end >= len(s.Close) {
		return 0, false
	}
	base := s.Close[end-n]
	if base == 0 {
		return 0, false
	}
	return (s.Close[end] - base) / base * 100.0, true
}

// SMA is the mean close over the window ending at end (inclusive).
func (s *Series) SMA(end, window int) (float64, bool) {
	if s == nil || window <= 0 || end >= len(s.Close) || end-window+1 < 0 {
		return 0, false
	}
	return stat.Mean(s.Close[end-window+1:end+1], nil), true
}

// VolumeRatio is volume[end] over the mean volume of the window ending at end (inclusive).
func (s *Series) VolumeRatio(end, window int) (float64, bool) {
	if s == nil || window <= 0 || end >= len(s.Volume) || end-window+1 < 0 {
		return 0, false
	}
	avg := stat.Mean(s.Volume[end-window+1:end+1], nil)
	if avg <= 0 {
		return 0, false
	}
	return s.Volume[end] / avg, true
}
