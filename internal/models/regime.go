package models

// RegimeLabel is the coarse market risk posture.
type RegimeLabel string

const (
	RiskOn  RegimeLabel = "RISK-ON"
	RiskOff RegimeLabel = "RISK-OFF"
	Neutral RegimeLabel = "NEUTRAL"
)

// Regime is recomputed on every snapshot and never persisted.
type Regime struct {
	Label  RegimeLabel `json:"label"`
	Detail string      `json:"detail"`
}
