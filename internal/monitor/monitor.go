package monitor

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/marketpulse/internal/logger"
	"github.com/rewired-gh/marketpulse/internal/marketdata"
	"github.com/rewired-gh/marketpulse/internal/metrics"
	"github.com/rewired-gh/marketpulse/internal/models"
	"github.com/rewired-gh/marketpulse/internal/news"
	"github.com/rewired-gh/marketpulse/internal/scoring"
	"github.com/rewired-gh/marketpulse/internal/storage"
)

const (
	volumeWindow = 20
	rsLookback   = 5
	// regimePeriod covers the 20-day benchmark average with slack for holidays.
	regimePeriod = "3mo"
)

type Config struct {
	Portfolio      []string
	Watchlist      []string
	Candidates     []string
	Benchmark      string
	VIX            string
	Aliases        map[string]string
	Names          map[string]string
	DefaultWeights models.WeightVector
	AlertThreshold float64
	TopN           int
	Concurrency    int
	NewsLimit      int
	RSPeriod       string
	Location       *time.Location
}

func DefaultConfig() Config {
	return Config{
		Benchmark:      "SPY",
		VIX:            "^VIX",
		DefaultWeights: models.WeightVector{models.CategoryMomentum: 0.25, models.CategoryRelStrength: 0.25, models.CategoryVolume: 0.20, models.CategoryCatalyst: 0.15, models.CategoryRegime: 0.15},
		AlertThreshold: scoring.DefaultMoveThreshold,
		TopN:           5,
		Concurrency:    4,
		NewsLimit:      5,
		RSPeriod:       "3mo",
		Location:       time.UTC,
	}
}

// Monitor runs snapshots and intraday alert checks over the configured universe.
type Monitor struct {
	prices   marketdata.Provider
	news     news.Provider
	storage  *storage.Storage
	recorder *metrics.Recorder
	config   Config
	now      func() time.Time
}

func New(prices marketdata.Provider, newsProvider news.Provider, s *storage.Storage, recorder *metrics.Recorder, config Config) *Monitor {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	return &Monitor{
		prices:   prices,
		news:     newsProvider,
		storage:  s,
		recorder: recorder,
		config:   config,
		now:      time.Now,
	}
}

// Today returns the current calendar day in the configured timezone.
func (m *Monitor) Today() string {
	return m.now().In(m.config.Location).Format("2006-01-02")
}

// ActiveWeights returns the learned weights when present, otherwise the
// configured defaults. The result is always normalized.
func (m *Monitor) ActiveWeights() models.WeightVector {
	if m.storage != nil {
		learned, err := m.storage.LoadWeights()
		if err != nil {
			logger.Warn("Failed to load learned weights, using defaults: %v", err)
		} else if learned != nil {
			return learned.Normalized()
		}
	}
	return m.config.DefaultWeights.Normalized()
}

// Snapshot scores every ticker of the universe and ranks the best and worst.
func (m *Monitor) Snapshot(ctx context.Context, reason string) *models.Snapshot {
	start := m.now()
	defer m.recorder.ObserveDuration("snapshot", start)

	weights := m.ActiveWeights()
	m.recorder.SetWeights(weights)

	benchHistory := m.prices.History(ctx, m.config.Resolve(m.config.Benchmark), regimePeriod)
	vixHistory := m.prices.History(ctx, m.config.Resolve(m.config.VIX), "1mo")
	regime := AssessRegime(benchHistory, vixHistory)
	benchRS, benchOK := benchHistory.ReturnPct(benchHistory.Last(), rsLookback)

	tickers := m.config.Universe()
	items := make([]models.TickerSignal, len(tickers))

	var g errgroup.Group
	g.SetLimit(m.config.Concurrency)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			var benchPtr *float64
			if benchOK && ticker != m.config.VIX {
				benchPtr = &benchRS
			}
			items[i] = m.scoreTicker(ctx, ticker, benchPtr, weights, regime)
			return nil
		})
	}
	_ = g.Wait()

	ranked := make([]models.TickerSignal, 0, len(items))
	for _, it := range items {
		m.recorder.SetTickerScore(it.Ticker, it.Score)
		if it.Ticker == m.config.VIX {
			continue
		}
		ranked = append(ranked, it)
	}

	snap := &models.Snapshot{
		Meta: models.SnapshotMeta{
			RunID:     uuid.NewString(),
			Timestamp: start.In(m.config.Location),
			Reason:    reason,
			Regime:    regime,
			Timezone:  m.config.Location.String(),
		},
		Top:   rank(ranked, m.config.TopN, true),
		Worst: rank(ranked, m.config.TopN, false),
		Items: items,
	}

	m.recorder.RecordSnapshot(reason)
	logger.Info("Snapshot %s (%s): %d tickers, regime %s", snap.Meta.RunID, reason, len(items), regime.Label)
	return snap
}

// scoreTicker gathers data for one ticker and computes its signal.
// benchRS is nil when relative strength should not be computed.
func (m *Monitor) scoreTicker(ctx context.Context, ticker string, benchRS *float64, weights models.WeightVector, regime models.Regime) models.TickerSignal {
	symbol := m.config.Resolve(ticker)
	last, prev, source := m.prices.DailyLastPrev(ctx, symbol)

	var pct1D *float64
	if last != nil && prev != nil && *prev != 0 {
		pct1D = models.Float((*last - *prev) / *prev * 100.0)
	}

	history := m.prices.History(ctx, symbol, m.config.RSPeriod)
	var rs *float64
	if benchRS != nil {
		if ret, ok := history.ReturnPct(history.Last(), rsLookback); ok {
			rs = models.Float(ret - *benchRS)
		}
	}
	volRatio := 1.0
	if ratio, ok := history.VolumeRatio(history.Last(), volumeWindow); ok {
		volRatio = ratio
	}

	var headlines []models.NewsItem
	if m.news != nil && m.config.NewsLimit > 0 {
		headlines = m.news.News(ctx, symbol, m.config.NewsLimit)
	}

	subs := scoring.Compute(pct1D, rs, volRatio, len(headlines), regime.Label)
	score := scoring.TotalScore(weights, subs)
	sig := models.TickerSignal{
		Ticker:   ticker,
		Symbol:   symbol,
		Name:     m.config.DisplayName(ticker),
		Last:     last,
		Prev:     prev,
		Pct1D:    pct1D,
		RS5D:     rs,
		VolRatio: volRatio,
		News:     headlines,
		Scores:   subs,
		Score:    score,
		Movement: scoring.MovementClass(pct1D, volRatio, m.config.AlertThreshold),
		Advice:   scoring.AdviceSoft(score, regime.Label),
		Why:      scoring.WhyFromHeadlines(headlines),
		Source:   source,
	}
	sig.Level = scoring.PickLevel(0, deref(pct1D), volRatio, sig.HasCatalyst(), score)

	if last == nil {
		logger.Debug("No price data for %s (%s)", ticker, symbol)
	}
	if err := sig.Validate(); err != nil {
		logger.Debug("Signal for %s out of range: %v", ticker, err)
	}
	return sig
}

// rank returns up to n signals ordered by score. Ties keep input order.
func rank(items []models.TickerSignal, n int, desc bool) []models.TickerSignal {
	sorted := make([]models.TickerSignal, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if desc {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Score < sorted[j].Score
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
