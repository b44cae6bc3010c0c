package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/rewired-gh/marketpulse/internal/config"
	"github.com/rewired-gh/marketpulse/internal/learner"
	"github.com/rewired-gh/marketpulse/internal/logger"
	"github.com/rewired-gh/marketpulse/internal/marketdata"
	"github.com/rewired-gh/marketpulse/internal/metrics"
	"github.com/rewired-gh/marketpulse/internal/models"
	"github.com/rewired-gh/marketpulse/internal/monitor"
	"github.com/rewired-gh/marketpulse/internal/news"
	"github.com/rewired-gh/marketpulse/internal/storage"
	"github.com/rewired-gh/marketpulse/internal/telegram"
)

// Report tags deduplicated per day in sent.json.
const (
	tagMorning = "morning"
	tagEvening = "evening"
)

// app wires configuration, state, providers and delivery for one process.
type app struct {
	cfg      *config.Config
	store    *storage.Storage
	recorder *metrics.Recorder
	monitor  *monitor.Monitor
	learner  *learner.Learner
	telegram *telegram.Client

	mu         sync.Mutex
	onSnapshot func(*models.Snapshot)
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", configPath)

	store, err := storage.New(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("State directory: %s", store.DataDir())

	recorder := metrics.New()

	prices := marketdata.NewClient(cfg.MarketData.BaseURL, marketdata.ClientConfig{
		Timeout:           cfg.MarketData.Timeout,
		MaxRetries:        cfg.MarketData.MaxRetries,
		RetryDelayBase:    cfg.MarketData.RetryDelayBase,
		RequestsPerSecond: cfg.MarketData.RequestsPerSecond,
		Burst:             cfg.MarketData.Burst,
		BreakerFailures:   cfg.MarketData.BreakerFailures,
		BreakerCooldown:   cfg.MarketData.BreakerCooldown,
	}, recorder)

	feeds := make([]news.Feed, 0, len(cfg.News.Feeds))
	for _, f := range cfg.News.Feeds {
		feeds = append(feeds, news.Feed{Name: f.Name, URL: f.URL})
	}
	headlines := news.NewRSSClient(feeds, cfg.News.Timeout, cfg.News.RequestsPerSecond, recorder)

	u := cfg.Universe
	mon := monitor.New(prices, headlines, store, recorder, monitor.Config{
		Portfolio:      u.Portfolio,
		Watchlist:      u.Watchlist,
		Candidates:     u.Candidates,
		Benchmark:      u.Benchmark,
		VIX:            u.VIX,
		Aliases:        u.Aliases,
		Names:          u.Names,
		DefaultWeights: cfg.DefaultWeights(),
		AlertThreshold: cfg.Scoring.AlertThreshold,
		TopN:           cfg.Scoring.TopN,
		Concurrency:    cfg.Monitor.Concurrency,
		NewsLimit:      cfg.Monitor.NewsLimit,
		RSPeriod:       cfg.Monitor.RSPeriod,
		Location:       cfg.Location(),
	})

	var tickers []string
	tickers = append(tickers, u.Portfolio...)
	tickers = append(tickers, u.Watchlist...)
	tickers = append(tickers, u.Candidates...)
	learn := learner.New(prices, recorder, learner.Config{
		Tickers:     tickers,
		Aliases:     u.Aliases,
		Benchmark:   u.Benchmark,
		MaxTickers:  cfg.Learner.MaxTickers,
		MinSamples:  cfg.Learner.MinSamples,
		Period:      cfg.Learner.Period,
		Concurrency: cfg.Monitor.Concurrency,
		Bounds: learner.Bounds{
			MinFixed:    cfg.Learner.MinFixed,
			MaxFixed:    cfg.Learner.MaxFixed,
			MaxShift:    cfg.Learner.MaxShift,
			ShiftFactor: cfg.Learner.ShiftFactor,
		},
	})

	a := &app{
		cfg:      cfg,
		store:    store,
		recorder: recorder,
		monitor:  mon,
		learner:  learn,
	}

	switch {
	case cfg.TelegramReady():
		a.telegram, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			store.Close() //nolint:errcheck
			return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		logger.Info("Telegram client initialized successfully")
	case cfg.Telegram.Enabled:
		logger.Warn("Telegram enabled but bot_token or chat_id missing, delivery skipped")
	default:
		logger.Debug("Telegram notifications disabled")
	}

	return a, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
}

func (a *app) setSnapshotHook(fn func(*models.Snapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onSnapshot = fn
}

// snapshot runs one snapshot and hands it to the hook, if any.
func (a *app) snapshot(ctx context.Context, reason string) *models.Snapshot {
	snap := a.monitor.Snapshot(ctx, reason)
	a.mu.Lock()
	hook := a.onSnapshot
	a.mu.Unlock()
	if hook != nil {
		hook(snap)
	}
	return snap
}

// report sends the snapshot for a daily tag at most once per day.
// It returns nil and sends nothing when the tag was already delivered today.
func (a *app) report(ctx context.Context, tag string) (*models.Snapshot, error) {
	day := a.monitor.Today()
	if a.store.WasSent(tag, day) {
		logger.Info("Report %s already sent for %s", tag, day)
		return nil, nil
	}

	snap := a.snapshot(ctx, tag)
	if a.telegram == nil {
		logger.Debug("Snapshot ready but Telegram not configured")
		return snap, nil
	}
	if err := a.telegram.SendSnapshot(snap); err != nil {
		return snap, fmt.Errorf("failed to send %s report: %w", tag, err)
	}
	a.store.MarkSent(tag, day)
	if err := a.store.Save(); err != nil {
		return snap, fmt.Errorf("failed to save state: %w", err)
	}
	logger.Info("Sent %s report for %s", tag, day)
	return snap, nil
}

// alerts runs one intraday alert check and optionally delivers the result.
// A failed delivery leaves the alerts unrecorded so the next check retries them.
func (a *app) alerts(ctx context.Context, push bool) ([]models.Alert, error) {
	day := a.monitor.Today()
	list := a.monitor.CheckAlerts(ctx, day)
	if push && len(list) > 0 {
		if a.telegram == nil {
			logger.Debug("Alerts detected but Telegram not configured")
		} else if err := a.telegram.SendAlerts(list); err != nil {
			return list, fmt.Errorf("failed to send alerts: %w", err)
		} else {
			logger.Info("Sent %d alerts", len(list))
		}
	}

	a.monitor.RecordAlerts(day, list)
	if err := a.store.Save(); err != nil {
		return list, fmt.Errorf("failed to save state: %w", err)
	}
	return list, nil
}

// learn re-estimates the weights. Unless dryRun, the result overwrites the
// learned weights and is delivered.
func (a *app) learn(ctx context.Context, dryRun bool) (*models.LearnResult, error) {
	result := a.learner.Learn(ctx, a.monitor.ActiveWeights())
	logger.Info("Learn run %s (%s): %v -> %v", result.RunID, result.Method, result.Before, result.After)
	if dryRun {
		return result, nil
	}

	if err := a.store.SaveWeights(result.After); err != nil {
		return result, fmt.Errorf("failed to save learned weights: %w", err)
	}
	if err := a.store.SaveLearnResult(result); err != nil {
		logger.Warn("Failed to save learn audit: %v", err)
	}
	if a.telegram != nil {
		if err := a.telegram.SendLearnResult(result); err != nil {
			return result, fmt.Errorf("failed to send learn result: %w", err)
		}
	}
	return result, nil
}
