package models

import (
	"time"
)

type SnapshotMeta struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
	Regime    Regime    `json:"regime"`
	Timezone  string    `json:"timezone"`
}

// Snapshot is the scored state of the whole universe at one moment.
type Snapshot struct {
	Meta  SnapshotMeta   `json:"meta"`
	Top   []TickerSignal `json:"top"`
	Worst []TickerSignal `json:"worst"`
	Items []TickerSignal `json:"items"`
}

type Alert struct {
	Ticker      string     `json:"ticker"`
	Symbol      string     `json:"symbol"`
	Name        string     `json:"name,omitempty"`
	Open        float64    `json:"open"`
	Last        float64    `json:"last"`
	PctFromOpen float64    `json:"pct_from_open"`
	Movement    string     `json:"movement"`
	Level       Level      `json:"level"`
	Why         string     `json:"why"`
	News        []NewsItem `json:"news,omitempty"`
	DetectedAt  time.Time  `json:"detected_at"`
}

type LearnResult struct {
	RunID        string             `json:"run_id"`
	Before       WeightVector       `json:"before"`
	After        WeightVector       `json:"after"`
	Method       string             `json:"method"`
	Notes        []string           `json:"notes"`
	Samples      int                `json:"samples"`
	Failures     int                `json:"failures"`
	Correlations map[string]float64 `json:"correlations,omitempty"`
	LearnedAt    time.Time          `json:"learned_at"`
}
