package monitor

import (
	"sort"
	"strings"
)

// wellKnownNames is a fallback display-name table for common symbols.
var wellKnownNames = map[string]string{
	"SPY":   "S&P 500 ETF",
	"QQQ":   "Nasdaq-100 ETF",
	"IWM":   "Russell 2000 ETF",
	"^VIX":  "CBOE Volatility Index",
	"^GSPC": "S&P 500",
	"AAPL":  "Apple",
	"MSFT":  "Microsoft",
	"NVDA":  "NVIDIA",
	"AMZN":  "Amazon",
	"GOOGL": "Alphabet",
	"META":  "Meta Platforms",
	"TSLA":  "Tesla",
	"AMD":   "Advanced Micro Devices",
	"ASML":  "ASML Holding",
	"SAP":   "SAP",
}

// Universe returns portfolio, watchlist, candidates, benchmark and volatility
// index, deduplicated in first-seen order.
func (c Config) Universe() []string {
	var all []string
	all = append(all, c.Portfolio...)
	all = append(all, c.Watchlist...)
	all = append(all, c.Candidates...)
	all = append(all, c.Benchmark, c.VIX)
	return dedupe(all)
}

// AlertTickers returns portfolio and watchlist tickers, sorted.
func (c Config) AlertTickers() []string {
	var all []string
	all = append(all, c.Portfolio...)
	all = append(all, c.Watchlist...)
	out := dedupe(all)
	sort.Strings(out)
	return out
}

// Resolve maps a raw ticker to the provider symbol through the alias table.
func (c Config) Resolve(ticker string) string {
	if sym, ok := c.Aliases[ticker]; ok && sym != "" {
		return sym
	}
	return ticker
}

// DisplayName returns a human-readable name for a ticker, or "".
func (c Config) DisplayName(ticker string) string {
	if name, ok := c.Names[ticker]; ok {
		return name
	}
	return wellKnownNames[ticker]
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
