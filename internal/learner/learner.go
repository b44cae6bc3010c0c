// Package learner re-estimates the composite score weights from how well
// simple proxy signals have predicted forward returns.
package learner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/marketpulse/internal/logger"
	"github.com/rewired-gh/marketpulse/internal/marketdata"
	"github.com/rewired-gh/marketpulse/internal/metrics"
	"github.com/rewired-gh/marketpulse/internal/models"
)

// Method tags recorded on every LearnResult.
const (
	MethodCorrBlend = "corr_blend_v1"
	MethodFallback  = "fallback_insufficient_samples"
)

const (
	forwardDays  = 5
	rsLookback   = 5
	volumeWindow = 20
	minVolumes   = 25
)

var errInsufficientHistory = errors.New("insufficient history")

type Config struct {
	Tickers     []string
	Aliases     map[string]string
	Benchmark   string
	MaxTickers  int
	MinSamples  int
	Period      string
	Concurrency int
	Bounds      Bounds
}

func DefaultConfig() Config {
	return Config{
		Benchmark:   "SPY",
		MaxTickers:  40,
		MinSamples:  12,
		Period:      "9mo",
		Concurrency: 4,
		Bounds:      DefaultBounds(),
	}
}

// Sample holds the proxy signals of one ticker and its forward return.
type Sample struct {
	Ticker      string
	Momentum    float64
	RelStrength float64
	VolRatio    float64
	Forward     float64
}

type Learner struct {
	prices   marketdata.Provider
	recorder *metrics.Recorder
	config   Config
	now      func() time.Time
}

func New(prices marketdata.Provider, recorder *metrics.Recorder, config Config) *Learner {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &Learner{prices: prices, recorder: recorder, config: config, now: time.Now}
}

// Learn samples the universe and blends current toward correlation-implied
// weights. It never fails: with too few samples the result carries the
// normalized current weights and the fallback method tag. Persisting the
// result is up to the caller.
func (l *Learner) Learn(ctx context.Context, current models.WeightVector) *models.LearnResult {
	start := l.now()
	defer l.recorder.ObserveDuration("learn", start)

	result := &models.LearnResult{
		RunID:     uuid.NewString(),
		Before:    current.Clone(),
		LearnedAt: start,
	}

	benchRet := 0.0
	bench := l.prices.History(ctx, l.resolve(l.config.Benchmark), l.config.Period)
	if ret, ok := sampleReturn(bench); ok {
		benchRet = ret
	} else {
		result.Notes = append(result.Notes, "benchmark history unavailable, relative strength uses raw 5d return")
	}

	tickers := l.universe()
	samples, failures := l.collect(ctx, tickers, benchRet)
	result.Samples = len(samples)
	result.Failures = failures
	result.Notes = append(result.Notes, fmt.Sprintf("sampled %d of %d tickers, %d failures", len(samples), len(tickers), failures))

	if len(samples) < l.config.MinSamples {
		result.Method = MethodFallback
		result.After = current.Normalized()
		result.Notes = append(result.Notes, fmt.Sprintf("need at least %d samples, weights unchanged", l.config.MinSamples))
		logger.Warn("Weight learning fell back: %d samples (need %d)", len(samples), l.config.MinSamples)
	} else {
		corr := Correlations(samples)
		result.Method = MethodCorrBlend
		result.Correlations = corr
		result.After = Blend(current, corr, l.config.Bounds)
		result.Notes = append(result.Notes, fmt.Sprintf("corr mom=%+.3f rs=%+.3f vol=%+.3f",
			corr[models.CategoryMomentum], corr[models.CategoryRelStrength], corr[models.CategoryVolume]))
		logger.Info("Learned weights from %d samples: %v", len(samples), result.After)
	}

	l.recorder.RecordLearnRun(result.Method, result.After)
	return result
}

// universe returns the configured tickers without the benchmark, capped at MaxTickers.
func (l *Learner) universe() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range l.config.Tickers {
		if t == "" || t == l.config.Benchmark || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if l.config.MaxTickers > 0 && len(out) >= l.config.MaxTickers {
			break
		}
	}
	return out
}

func (l *Learner) resolve(ticker string) string {
	if sym, ok := l.config.Aliases[ticker]; ok && sym != "" {
		return sym
	}
	return ticker
}

// collect fetches histories concurrently and extracts one sample per ticker.
// Samples keep universe order.
func (l *Learner) collect(ctx context.Context, tickers []string, benchRet float64) ([]Sample, int) {
	results := make([]*Sample, len(tickers))
	var mu sync.Mutex
	failures := 0

	var g errgroup.Group
	g.SetLimit(l.config.Concurrency)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			history := l.prices.History(ctx, l.resolve(ticker), l.config.Period)
			s, err := ExtractSample(ticker, history, benchRet)
			if err != nil {
				logger.Debug("Skipping %s for learning: %v", ticker, err)
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}
			results[i] = &s
			return nil
		})
	}
	_ = g.Wait()

	samples := make([]Sample, 0, len(results))
	for _, s := range results {
		if s != nil {
			samples = append(samples, *s)
		}
	}
	return samples, failures
}

// ExtractSample computes the proxies at the close forwardDays sessions before
// the end of history, and the forward return from there to the last close.
func ExtractSample(ticker string, history *marketdata.Series, benchRet float64) (Sample, error) {
	n := history.Len()
	if n < 2 {
		return Sample{}, fmt.Errorf("%w: %d closes for 1d return", errInsufficientHistory, n)
	}
	if n < rsLookback+forwardDays+1 {
		return Sample{}, fmt.Errorf("%w: %d closes for 5d return", errInsufficientHistory, n)
	}
	if len(history.Volume) < minVolumes || n < minVolumes {
		return Sample{}, fmt.Errorf("%w: %d volume points", errInsufficientHistory, len(history.Volume))
	}

	at := history.Last() - forwardDays
	oneDay, ok1 := history.ReturnPct(at, 1)
	fiveDay, ok5 := history.ReturnPct(at, rsLookback)
	volRatio, okV := history.VolumeRatio(at, volumeWindow)
	forward, okF := history.ReturnPct(history.Last(), forwardDays)
	if !ok1 || !ok5 || !okV || !okF {
		return Sample{}, fmt.Errorf("%w: unusable values at sample point", errInsufficientHistory)
	}

	return Sample{
		Ticker:      ticker,
		Momentum:    math.Abs(oneDay),
		RelStrength: fiveDay - benchRet,
		VolRatio:    volRatio,
		Forward:     forward,
	}, nil
}

// sampleReturn is the benchmark 5d return at the same sample point.
func sampleReturn(history *marketdata.Series) (float64, bool) {
	return history.ReturnPct(history.Last()-forwardDays, rsLookback)
}
