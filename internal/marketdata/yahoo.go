package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/marketpulse/internal/logger"
	"github.com/rewired-gh/marketpulse/internal/metrics"
	"github.com/rewired-gh/marketpulse/internal/models"
)

const SourceYahoo = "yahoo"

// ClientConfig holds HTTP tuning for the Yahoo chart client.
type ClientConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	RetryDelayBase    time.Duration
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   uint32
	BreakerCooldown   time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:           10 * time.Second,
		MaxRetries:        3,
		RetryDelayBase:    time.Second,
		RequestsPerSecond: 4,
		Burst:             4,
		BreakerFailures:   5,
		BreakerCooldown:   time.Minute,
	}
}

// Client implements Provider against the Yahoo Finance chart API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cfg        ClientConfig
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	recorder   *metrics.Recorder
}

// NewClient creates a chart client. recorder may be nil.
func NewClient(baseURL string, cfg ClientConfig, recorder *metrics.Recorder) *Client {
	def := DefaultClientConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = def.RetryDelayBase
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = def.BreakerCooldown
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		recorder:   recorder,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "yahoo-chart",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			// a symbol without data is not a provider failure
			return err == nil || errors.Is(err, errNoData)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return c
}

var errNoData = errors.New("no data")

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol             string   `json:"symbol"`
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
		ChartPreviousClose *float64 `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// DailyLastPrev returns the two most recent daily closes.
func (c *Client) DailyLastPrev(ctx context.Context, symbol string) (*float64, *float64, string) {
	s := c.History(ctx, symbol, "5d")
	if s.Len() == 0 {
		return nil, nil, SourceNone
	}
	last := models.Float(s.Close[s.Last()])
	if s.Len() < 2 {
		return last, nil, SourceYahoo
	}
	return last, models.Float(s.Close[s.Last()-1]), SourceYahoo
}

// IntradayOpenLast returns the first open and the latest price of today's session.
func (c *Client) IntradayOpenLast(ctx context.Context, symbol string) (float64, float64, bool) {
	res, err := c.chart(ctx, symbol, "1d", "5m")
	if err != nil {
		logger.Debug("Intraday fetch for %s failed: %v", symbol, err)
		return 0, 0, false
	}
	if len(res.Indicators.Quote) == 0 {
		return 0, 0, false
	}
	q := res.Indicators.Quote[0]

	var open, last float64
	for _, v := range q.Open {
		if v != nil && *v > 0 {
			open = *v
			break
		}
	}
	if res.Meta.RegularMarketPrice != nil {
		last = *res.Meta.RegularMarketPrice
	} else {
		for i := len(q.Close) - 1; i >= 0; i-- {
			if q.Close[i] != nil {
				last = *q.Close[i]
				break
			}
		}
	}
	if open == 0 || last == 0 {
		return 0, 0, false
	}
	return open, last, true
}

// History returns daily bars for period. Bars without a close are dropped.
func (c *Client) History(ctx context.Context, symbol, period string) *Series {
	res, err := c.chart(ctx, symbol, period, "1d")
	if err != nil {
		logger.Debug("History fetch for %s (%s) failed: %v", symbol, period, err)
		return nil
	}
	if len(res.Indicators.Quote) == 0 {
		return nil
	}
	q := res.Indicators.Quote[0]

	s := &Series{}
	for i, ts := range res.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		vol := 0.0
		if i < len(q.Volume) && q.Volume[i] != nil {
			vol = *q.Volume[i]
		}
		s.Dates = append(s.Dates, time.Unix(ts, 0).UTC())
		s.Close = append(s.Close, *q.Close[i])
		s.Volume = append(s.Volume, vol)
	}
	if s.Len() == 0 {
		return nil
	}
	return s
}

func (c *Client) chart(ctx context.Context, symbol, rng, interval string) (*chartResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u, err := url.Parse(c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("range", rng)
	q.Set("interval", interval)
	q.Set("includePrePost", "false")
	u.RawQuery = q.Encode()

	out, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := c.doRequest(ctx, u.String())
		if err != nil {
			return nil, err
		}
		var cr chartResponse
		if err := json.Unmarshal(body, &cr); err != nil {
			return nil, fmt.Errorf("failed to decode chart: %w", err)
		}
		if cr.Chart.Error != nil {
			return nil, fmt.Errorf("%w: %s", errNoData, cr.Chart.Error.Description)
		}
		if len(cr.Chart.Result) == 0 {
			return nil, errNoData
		}
		return &cr.Chart.Result[0], nil
	})
	if err != nil {
		c.recorder.RecordFetchFailure("chart")
		return nil, err
	}
	return out.(*chartResult), nil
}

// doRequest performs an HTTP GET with rate limiting and linear-backoff retry on 5xx.
func (c *Client) doRequest(ctx context.Context, urlStr string) ([]byte, error) {
	var lastErr error

	for i := 0; i < c.cfg.MaxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "Mozilla/5.0 (marketpulse)")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close() //nolint:errcheck
			switch {
			case readErr != nil:
				lastErr = readErr
			case resp.StatusCode == http.StatusNotFound:
				return nil, errNoData
			case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
				lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			case resp.StatusCode >= 400:
				return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
			default:
				return body, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.RetryDelayBase * time.Duration(i+1)):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
