// Package models defines the core domain entities: ticker signals, weights, regimes, alerts, and snapshots.
package models

import (
	"errors"
	"math"
	"strings"
)

// Movement labels produced by the classifier.
const (
	MovementStrongUp   = "STRONG_UP"
	MovementUp         = "UP"
	MovementNeutral    = "NEUTRAL"
	MovementDown       = "DOWN"
	MovementStrongDown = "STRONG_DOWN"
	MovementUnknown    = "UNKNOWN"

	// HighVolumeSuffix is appended to a movement label when volume is at least twice normal.
	HighVolumeSuffix = " (HIGH_VOLUME)"
)

// Level is the trading-horizon label assigned to a ticker.
type Level string

const (
	LevelScalp    Level = "SCALP"
	LevelDay      Level = "DAY"
	LevelSwing    Level = "SWING"
	LevelPosition Level = "POSITION"
	LevelInvest   Level = "INVEST"
)

// NewsItem is a single headline attached to a ticker.
type NewsItem struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// SubScores holds the five normalized 0..10 sub-scores of a ticker.
type SubScores struct {
	Momentum     float64 `json:"momentum"`
	RelStrength  float64 `json:"rel_strength"`
	VolumeScore  float64 `json:"volatility_volume"`
	Catalyst     float64 `json:"catalyst"`
	MarketRegime float64 `json:"market_regime"`
}

// ByCategory returns the sub-score belonging to a weight category.
func (s SubScores) ByCategory(category string) float64 {
	switch category {
	case CategoryMomentum:
		return s.Momentum
	case CategoryRelStrength:
		return s.RelStrength
	case CategoryVolume:
		return s.VolumeScore
	case CategoryCatalyst:
		return s.Catalyst
	case CategoryRegime:
		return s.MarketRegime
	}
	return 0
}

// TickerSignal is the per-ticker result of one snapshot.
// Nil pointers mean the value could not be fetched.
type TickerSignal struct {
	Ticker   string     `json:"ticker"`
	Symbol   string     `json:"symbol"`
	Name     string     `json:"name,omitempty"`
	Last     *float64   `json:"last"`
	Prev     *float64   `json:"prev"`
	Pct1D    *float64   `json:"pct_1d"`
	RS5D     *float64   `json:"rs_5d"`
	VolRatio float64    `json:"vol_ratio"`
	News     []NewsItem `json:"news"`
	Scores   SubScores  `json:"sub_scores"`
	Score    float64    `json:"score"`
	Movement string     `json:"movement"`
	Advice   string     `json:"advice"`
	Why      string     `json:"why"`
	Level    Level      `json:"level"`
	Source   string     `json:"source"`
}

// HasCatalyst reports whether the ticker has any recent headline.
func (t *TickerSignal) HasCatalyst() bool {
	return len(t.News) > 0
}

// Validate checks signal field constraints.
func (t *TickerSignal) Validate() error {
	if strings.TrimSpace(t.Ticker) == "" {
		return errors.New("ticker must not be empty")
	}
	if t.Symbol == "" {
		return errors.New("resolved symbol must not be empty")
	}
	if t.VolRatio < 0 || math.IsNaN(t.VolRatio) {
		return errors.New("volume ratio must be a non-negative number")
	}
	if t.Score < 0 || t.Score > 10.000001 {
		return errors.New("score must be between 0 and 10")
	}
	if t.Movement == "" {
		return errors.New("movement must not be empty")
	}
	return nil
}

// Float returns a pointer to v. NaN and Inf map to nil.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
