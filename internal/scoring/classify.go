// Package scoring turns raw ticker signals into sub-scores, a composite score,
// movement labels, advice, and a trading-horizon level. Every function here is
// total: missing inputs produce neutral outputs, never errors.
package scoring

import (
	"math"
	"strings"

	"github.com/rewired-gh/marketpulse/internal/models"
)

// DefaultMoveThreshold is the strong-move and alert boundary in percent.
const DefaultMoveThreshold = 3.0

// HighVolumeRatio is the volume ratio at which a movement label gets the high-volume qualifier.
const HighVolumeRatio = 2.0

// NoClearDriver is returned by WhyFromHeadlines when nothing in the headlines explains a move.
const NoClearDriver = "no clear driver in headlines"

// MovementClass maps a percentage move to a movement label.
// threshold is the strong-move boundary, normally the configured alert threshold.
func MovementClass(pct *float64, volRatio, threshold float64) string {
	if pct == nil || math.IsNaN(*pct) {
		return models.MovementUnknown
	}
	p := *pct

	var label string
	switch {
	case p >= threshold:
		label = models.MovementStrongUp
	case p >= 1.0:
		label = models.MovementUp
	case p > -1.0:
		label = models.MovementNeutral
	case p > -threshold:
		label = models.MovementDown
	default:
		label = models.MovementStrongDown
	}

	if volRatio >= HighVolumeRatio {
		label += models.HighVolumeSuffix
	}
	return label
}

type headlineReason struct {
	keywords []string
	reason   string
}

// headlineReasons is scanned in order; the first two hits win.
var headlineReasons = []headlineReason{
	{[]string{"earnings", "results", "quarterly", "eps", "revenue", "profit"}, "earnings/results"},
	{[]string{"guidance", "outlook", "forecast", "raises target", "cuts target"}, "guidance update"},
	{[]string{"upgrade", "downgrade", "price target", "analyst", "initiates coverage", "rating"}, "analyst action"},
	{[]string{"acquire", "acquisition", "merger", "takeover", "buyout", "to buy"}, "M&A"},
	{[]string{"lawsuit", "probe", "investigation", "regulator", "antitrust", "sec ", "fda", "court", "fined"}, "regulatory/legal"},
	{[]string{"contract", "partnership", "agreement", "order from", "wins deal", "supply deal"}, "commercial contract"},
	{[]string{" ai ", "artificial intelligence", "chip", "semiconductor", "data center", "sector"}, "sector/AI theme"},
	{[]string{"buyback", "repurchase", "dividend"}, "capital return"},
}

// WhyFromHeadlines explains a move from headline text using a fixed keyword table.
func WhyFromHeadlines(items []models.NewsItem) string {
	if len(items) == 0 {
		return NoClearDriver
	}

	titles := make([]string, 0, len(items))
	for _, it := range items {
		titles = append(titles, it.Title)
	}
	// pad so whole-word keywords such as " ai " also match at the edges
	text := " " + strings.ToLower(strings.Join(titles, " | ")) + " "

	var reasons []string
	for _, r := range headlineReasons {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				reasons = append(reasons, r.reason)
				break
			}
		}
		if len(reasons) == 2 {
			break
		}
	}

	if len(reasons) == 0 {
		return NoClearDriver
	}
	return strings.Join(reasons, "; ")
}
