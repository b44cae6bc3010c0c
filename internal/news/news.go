// Package news fetches ticker headlines from RSS feeds.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rewired-gh/marketpulse/internal/logger"
	"github.com/rewired-gh/marketpulse/internal/metrics"
	"github.com/rewired-gh/marketpulse/internal/models"
)

// Provider returns headlines for a ticker, deduplicated by normalized title.
type Provider interface {
	News(ctx context.Context, symbol string, limit int) []models.NewsItem
}

// Feed is an RSS endpoint. URL may contain {symbol}, replaced by the query-escaped ticker.
type Feed struct {
	Name string
	URL  string
}

// DefaultFeeds are used when no feeds are configured.
var DefaultFeeds = []Feed{
	{Name: "Yahoo Finance", URL: "https://feeds.finance.yahoo.com/rss/2.0/headline?s={symbol}&region=US&lang=en-US"},
	{Name: "Google News", URL: "https://news.google.com/rss/search?q={symbol}+stock&hl=en-US&gl=US&ceid=US:en"},
}

// RSSClient queries each feed in order and merges the items.
type RSSClient struct {
	feeds      []Feed
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	recorder   *metrics.Recorder
}

// NewRSSClient creates a client. recorder may be nil.
func NewRSSClient(feeds []Feed, timeout time.Duration, requestsPerSecond float64, recorder *metrics.Recorder) *RSSClient {
	if len(feeds) == 0 {
		feeds = DefaultFeeds
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2
	}
	return &RSSClient{
		feeds:      feeds,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		recorder:   recorder,
	}
}

type rssDocument struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title  string `xml:"title"`
	Link   string `xml:"link"`
	Source string `xml:"source"`
}

// News returns up to limit headlines. A failing feed is skipped.
func (c *RSSClient) News(ctx context.Context, symbol string, limit int) []models.NewsItem {
	if limit <= 0 {
		return nil
	}

	var items []models.NewsItem
	for _, feed := range c.feeds {
		fetched, err := c.fetchFeed(ctx, feed, symbol)
		if err != nil {
			logger.Debug("News feed %s for %s failed: %v", feed.Name, symbol, err)
			c.recorder.RecordFetchFailure("news")
			continue
		}
		items = Dedupe(append(items, fetched...))
		if len(items) >= limit {
			return items[:limit]
		}
	}
	return items
}

// Dedupe keeps the first item for each normalized title, preserving order.
func Dedupe(items []models.NewsItem) []models.NewsItem {
	seen := make(map[string]bool, len(items))
	var dst []models.NewsItem
	for _, it := range items {
		key := NormalizeTitle(it.Title)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		dst = append(dst, it)
	}
	return dst
}

// NormalizeTitle lower-cases a title and collapses whitespace.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

func (c *RSSClient) fetchFeed(ctx context.Context, feed Feed, symbol string) ([]models.NewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := strings.ReplaceAll(feed.URL, "{symbol}", url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml")
	req.Header.Set("User-Agent", "Mozilla/5.0 (marketpulse)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}

	items := make([]models.NewsItem, 0, len(doc.Channel.Items))
	for _, it := range doc.Channel.Items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		source := strings.TrimSpace(it.Source)
		if source == "" {
			source = feed.Name
		}
		items = append(items, models.NewsItem{
			Source: source,
			Title:  title,
			URL:    strings.TrimSpace(it.Link),
		})
	}
	return items, nil
}
