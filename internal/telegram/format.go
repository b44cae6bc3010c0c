package telegram

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/marketpulse/internal/models"
)

// maxMessageLen stays under the Bot API limit of 4096 characters.
const maxMessageLen = 4000

const missing = "—"

// FormatSnapshot renders a snapshot as a MarkdownV2 report.
func FormatSnapshot(snap *models.Snapshot) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 *Market snapshot* \\(%s\\)\n", escapeMarkdownV2(snap.Meta.Reason)))
	b.WriteString(fmt.Sprintf("🕒 %s\n", escapeMarkdownV2(snap.Meta.Timestamp.Format("2006-01-02 15:04")+" "+snap.Meta.Timezone)))
	b.WriteString(fmt.Sprintf("🌐 Regime: *%s*", escapeMarkdownV2(string(snap.Meta.Regime.Label))))
	if snap.Meta.Regime.Detail != "" {
		b.WriteString(fmt.Sprintf(" \\(%s\\)", escapeMarkdownV2(snap.Meta.Regime.Detail)))
	}
	b.WriteString("\n\n")

	writeRanking(&b, "🟢 *Top*", snap.Top)
	writeRanking(&b, "🔴 *Worst*", snap.Worst)
	return b.String()
}

func writeRanking(b *strings.Builder, title string, items []models.TickerSignal) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title + "\n")
	for i, it := range items {
		b.WriteString(fmt.Sprintf("%d\\. %s %s · %s · %s\n",
			i+1,
			tickerLabel(it.Ticker, it.Name),
			escapeMarkdownV2(fmt.Sprintf("%.2f", it.Score)),
			escapeMarkdownV2(pctString(it.Pct1D)),
			escapeMarkdownV2(string(it.Level)),
		))
		b.WriteString(fmt.Sprintf("   %s · %s\n", escapeMarkdownV2(it.Advice), escapeMarkdownV2(it.Movement)))
		b.WriteString(fmt.Sprintf("   _%s_\n", escapeMarkdownV2(it.Why)))
	}
	b.WriteString("\n")
}

// FormatAlerts renders intraday alerts as a MarkdownV2 message.
func FormatAlerts(alerts []models.Alert) string {
	var b strings.Builder
	b.WriteString("🚨 *Intraday moves*\n")
	if len(alerts) > 0 {
		b.WriteString(fmt.Sprintf("📅 %s\n", escapeMarkdownV2(alerts[0].DetectedAt.Format("2006-01-02 15:04"))))
	}
	b.WriteString("\n")

	for i, a := range alerts {
		emoji := "📈"
		if a.PctFromOpen < 0 {
			emoji = "📉"
		}
		b.WriteString(fmt.Sprintf("%d\\. %s %s *%s* \\(%s → %s\\)\n",
			i+1,
			emoji,
			tickerLabel(a.Ticker, a.Name),
			escapeMarkdownV2(fmt.Sprintf("%+.2f%%", a.PctFromOpen)),
			escapeMarkdownV2(fmt.Sprintf("%.2f", a.Open)),
			escapeMarkdownV2(fmt.Sprintf("%.2f", a.Last)),
		))
		b.WriteString(fmt.Sprintf("   %s · %s\n", escapeMarkdownV2(a.Movement), escapeMarkdownV2(string(a.Level))))
		b.WriteString(fmt.Sprintf("   _%s_\n", escapeMarkdownV2(a.Why)))
		if len(a.News) > 0 && a.News[0].URL != "" {
			b.WriteString(fmt.Sprintf("   [%s](%s)\n", escapeMarkdownV2(a.News[0].Title), escapeLinkURL(a.News[0].URL)))
		}
	}
	return b.String()
}

// FormatLearnResult renders the before/after weights of a learning run.
func FormatLearnResult(r *models.LearnResult) string {
	var b strings.Builder
	b.WriteString("🧠 *Weekly weight update*\n")
	b.WriteString(fmt.Sprintf("Method: `%s`\n", escapeMarkdownV2(r.Method)))
	b.WriteString(fmt.Sprintf("Samples: %d, failures: %d\n\n", r.Samples, r.Failures))

	for _, c := range models.Categories {
		b.WriteString(fmt.Sprintf("%s: %s → *%s*\n",
			escapeMarkdownV2(c),
			escapeMarkdownV2(fmt.Sprintf("%.3f", r.Before[c])),
			escapeMarkdownV2(fmt.Sprintf("%.3f", r.After[c])),
		))
	}
	if len(r.Notes) > 0 {
		b.WriteString("\n")
		for _, n := range r.Notes {
			b.WriteString(fmt.Sprintf("• %s\n", escapeMarkdownV2(n)))
		}
	}
	return b.String()
}

func tickerLabel(ticker, name string) string {
	label := "*" + escapeMarkdownV2(ticker) + "*"
	if name != "" {
		label += " " + escapeMarkdownV2(name)
	}
	return label
}

func pctString(p *float64) string {
	if p == nil {
		return missing
	}
	return fmt.Sprintf("%+.2f%%", *p)
}

// splitMessage cuts text into parts of at most limit bytes on line boundaries.
// A single line longer than limit is cut as is.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			parts = append(parts, line[:limit])
			line = line[limit:]
		}
		if cur.Len()+len(line) > limit {
			parts = append(parts, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// escapeLinkURL escapes the characters MarkdownV2 reserves inside link targets.
func escapeLinkURL(url string) string {
	return strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(url)
}
