package learner

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/marketpulse/internal/marketdata"
	"github.com/rewired-gh/marketpulse/internal/models"
)

type fakePrices struct {
	mu      sync.Mutex
	history map[string]*marketdata.Series
	calls   []string
}

func (f *fakePrices) DailyLastPrev(context.Context, string) (*float64, *float64, string) {
	return nil, nil, marketdata.SourceNone
}

func (f *fakePrices) IntradayOpenLast(context.Context, string) (float64, float64, bool) {
	return 0, 0, false
}

func (f *fakePrices) History(_ context.Context, symbol, _ string) *marketdata.Series {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, symbol)
	return f.history[symbol]
}

// trending builds a 30-bar history whose sample-point move and forward
// return both scale with k.
func trending(k float64) *marketdata.Series {
	s := &marketdata.Series{Close: make([]float64, 30), Volume: make([]float64, 30)}
	for i := range s.Close {
		s.Volume[i] = 1000
		switch {
		case i < 24:
			s.Close[i] = 100
		case i == 24:
			s.Close[i] = 100 + k
			s.Volume[i] = 1000 + 100*k
		default:
			s.Close[i] = (100 + k) * (1 + 0.01*k*float64(i-24)/5)
		}
	}
	return s
}

func flatSeries(n int) *marketdata.Series {
	s := &marketdata.Series{Close: make([]float64, n), Volume: make([]float64, n)}
	for i := range s.Close {
		s.Close[i], s.Volume[i] = 100, 1000
	}
	return s
}

func defaultWeights() models.WeightVector {
	return models.WeightVector{
		models.CategoryMomentum:    0.25,
		models.CategoryRelStrength: 0.25,
		models.CategoryVolume:      0.20,
		models.CategoryCatalyst:    0.15,
		models.CategoryRegime:      0.15,
	}
}

func TestCorrelation(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
		want float64
	}{
		{"perfect positive", []float64{1, 2, 3, 4}, []float64{2, 4, 6, 8}, 1},
		{"perfect negative", []float64{1, 2, 3, 4}, []float64{8, 6, 4, 2}, -1},
		{"zero variance x", []float64{1, 1, 1}, []float64{1, 2, 3}, 0},
		{"zero variance y", []float64{1, 2, 3}, []float64{5, 5, 5}, 0},
		{"too short", []float64{1}, []float64{1}, 0},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Correlation(tt.x, tt.y), 1e-9)
		})
	}
}

func TestSignalShares(t *testing.T) {
	shares := SignalShares(map[string]float64{
		models.CategoryMomentum:    -0.6,
		models.CategoryRelStrength: 0.3,
		models.CategoryVolume:      0.1,
	})
	assert.InDelta(t, 0.6, shares[models.CategoryMomentum], 1e-9)
	assert.InDelta(t, 0.3, shares[models.CategoryRelStrength], 1e-9)
	assert.InDelta(t, 0.1, shares[models.CategoryVolume], 1e-9)

	equal := SignalShares(map[string]float64{})
	for _, c := range trainable {
		assert.InDelta(t, 1.0/3, equal[c], 1e-12)
	}
}

func TestBlend_Bounds(t *testing.T) {
	weights := []models.WeightVector{
		defaultWeights(),
		models.EqualWeights(),
		{models.CategoryMomentum: 0.7, models.CategoryRelStrength: 0.05, models.CategoryVolume: 0.05, models.CategoryCatalyst: 0.1, models.CategoryRegime: 0.1},
		{models.CategoryMomentum: 0.01, models.CategoryRelStrength: 0.01, models.CategoryVolume: 0.01, models.CategoryCatalyst: 0.02, models.CategoryRegime: 0.95},
		{models.CategoryCatalyst: 0.5, models.CategoryRegime: 0.5},
	}
	correlations := []map[string]float64{
		{},
		{models.CategoryMomentum: 0.9, models.CategoryRelStrength: 0.1, models.CategoryVolume: -0.2},
		{models.CategoryMomentum: 0, models.CategoryRelStrength: -1, models.CategoryVolume: 0},
		{models.CategoryMomentum: 0.33, models.CategoryRelStrength: 0.33, models.CategoryVolume: 0.33},
	}
	b := DefaultBounds()

	for wi, w := range weights {
		for ci, corr := range correlations {
			t.Run(fmt.Sprintf("w%d_c%d", wi, ci), func(t *testing.T) {
				prior := w.Normalized()
				shares := SignalShares(corr)
				var pool float64
				for _, c := range trainable {
					pool += prior[c]
				}

				blended := blend(prior, shares, b)
				for _, c := range trainable {
					target := pool * (0.20 + 0.80*shares[c])
					lo, hi := math.Min(prior[c], target), math.Max(prior[c], target)
					assert.GreaterOrEqual(t, blended[c], lo-1e-12, c)
					assert.LessOrEqual(t, blended[c], hi+1e-12, c)
				}

				after := Blend(w, corr, b)
				assert.InDelta(t, 1.0, after.Sum(), 1e-9)
				for _, c := range fixed {
					assert.GreaterOrEqual(t, after[c], b.MinFixed-1e-12, c)
					assert.LessOrEqual(t, after[c], b.MaxFixed+1e-12, c)
				}
				for _, c := range models.Categories {
					assert.GreaterOrEqual(t, after[c], 0.0, c)
				}
			})
		}
	}
}

func TestBlend_ShiftIsBounded(t *testing.T) {
	// pool 0.7 gives shift min(0.12, 0.175) = 0.12
	prior := defaultWeights()
	corr := map[string]float64{models.CategoryMomentum: 1}
	blended := blend(prior, SignalShares(corr), DefaultBounds())

	assert.InDelta(t, 0.88*0.25+0.12*0.7, blended[models.CategoryMomentum], 1e-12)
	assert.InDelta(t, 0.88*0.25+0.12*0.14, blended[models.CategoryRelStrength], 1e-12)
	assert.InDelta(t, 0.88*0.20+0.12*0.14, blended[models.CategoryVolume], 1e-12)
	assert.Equal(t, 0.15, blended[models.CategoryCatalyst])
}

func TestExtractSample(t *testing.T) {
	s, err := ExtractSample("AAA", trending(2), 0.5)
	require.NoError(t, err)
	assert.Equal(t, "AAA", s.Ticker)
	assert.InDelta(t, 2.0, s.Momentum, 1e-9)
	assert.InDelta(t, 1.5, s.RelStrength, 1e-9)
	assert.Greater(t, s.VolRatio, 1.0)
	assert.InDelta(t, 2.0, s.Forward, 1e-9)

	for _, n := range []int{0, 1, 5, 10, 24} {
		_, err := ExtractSample("SHORT", flatSeries(n), 0)
		assert.ErrorIs(t, err, errInsufficientHistory, "n=%d", n)
	}
	_, err = ExtractSample("NIL", nil, 0)
	assert.ErrorIs(t, err, errInsufficientHistory)
}

func TestLearn_Fallback(t *testing.T) {
	prices := &fakePrices{history: map[string]*marketdata.Series{"SPY": flatSeries(30)}}
	cfg := DefaultConfig()
	for i := 0; i < 11; i++ {
		sym := fmt.Sprintf("T%02d", i)
		cfg.Tickers = append(cfg.Tickers, sym)
		prices.history[sym] = trending(float64(i))
	}
	cfg.Tickers = append(cfg.Tickers, "SHORT1", "SHORT2")
	prices.history["SHORT1"] = flatSeries(3)

	current := models.WeightVector{
		models.CategoryMomentum: 2, models.CategoryRelStrength: 2, models.CategoryVolume: 2,
		models.CategoryCatalyst: 2, models.CategoryRegime: 2,
	}
	result := New(prices, nil, cfg).Learn(context.Background(), current)

	assert.Equal(t, MethodFallback, result.Method)
	assert.Equal(t, 11, result.Samples)
	assert.Equal(t, 2, result.Failures)
	assert.Equal(t, current.Normalized(), result.After)
	assert.Equal(t, current, result.Before)
	assert.NotEmpty(t, result.RunID)
	assert.NotEmpty(t, result.Notes)
	assert.Nil(t, result.Correlations)
}

func TestLearn_Blend(t *testing.T) {
	prices := &fakePrices{history: map[string]*marketdata.Series{"SPY": flatSeries(30)}}
	cfg := DefaultConfig()
	for i := 0; i < 20; i++ {
		sym := fmt.Sprintf("T%02d", i)
		cfg.Tickers = append(cfg.Tickers, sym)
		prices.history[sym] = trending(float64(i%7) - 3)
	}

	current := defaultWeights()
	result := New(prices, nil, cfg).Learn(context.Background(), current)

	assert.Equal(t, MethodCorrBlend, result.Method)
	assert.Equal(t, 20, result.Samples)
	assert.Zero(t, result.Failures)
	require.Len(t, result.Correlations, 3)
	assert.InDelta(t, 1.0, result.After.Sum(), 1e-9)
	assert.Greater(t, result.Correlations[models.CategoryRelStrength], 0.9)
	assert.NotEqual(t, current, result.After)
}

func TestLearn_CapsUniverse(t *testing.T) {
	prices := &fakePrices{history: map[string]*marketdata.Series{}}
	cfg := DefaultConfig()
	for i := 0; i < 60; i++ {
		cfg.Tickers = append(cfg.Tickers, fmt.Sprintf("T%02d", i))
	}
	cfg.Tickers = append(cfg.Tickers, "SPY", "T00")

	result := New(prices, nil, cfg).Learn(context.Background(), defaultWeights())

	assert.Equal(t, MethodFallback, result.Method)
	assert.Equal(t, 40, result.Failures)
	// benchmark plus 40 tickers
	assert.Len(t, prices.calls, 41)
	assert.Contains(t, result.Notes[0], "benchmark history unavailable")
}

func TestLearn_Aliases(t *testing.T) {
	prices := &fakePrices{history: map[string]*marketdata.Series{"SAP.DE": trending(1)}}
	cfg := DefaultConfig()
	cfg.Tickers = []string{"SAP"}
	cfg.Aliases = map[string]string{"SAP": "SAP.DE"}

	result := New(prices, nil, cfg).Learn(context.Background(), defaultWeights())
	assert.Equal(t, 1, result.Samples)
	assert.Contains(t, prices.calls, "SAP.DE")
}
