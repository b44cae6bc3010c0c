package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dailyChart = `{"chart":{"result":[{
  "meta":{"symbol":"AAPL","regularMarketPrice":103.0,"chartPreviousClose":99.0},
  "timestamp":[1760000000,1760086400,1760172800,1760259200],
  "indicators":{"quote":[{
    "open":[99.5,100.5,null,102.5],
    "close":[100.0,101.0,null,103.0],
    "volume":[1000,1100,null,1500]
  }]}
}],"error":null}}`

const intradayChart = `{"chart":{"result":[{
  "meta":{"symbol":"AAPL","regularMarketPrice":105.0},
  "timestamp":[1760259200,1760259500],
  "indicators":{"quote":[{"open":[null,100.0],"close":[101.0,104.0],"volume":[10,20]}]}
}],"error":null}}`

func testConfig() ClientConfig {
	return ClientConfig{
		Timeout:           2 * time.Second,
		MaxRetries:        3,
		RetryDelayBase:    time.Millisecond,
		RequestsPerSecond: 1000,
		Burst:             100,
		BreakerFailures:   50,
		BreakerCooldown:   time.Second,
	}
}

func newChartServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/MISSING"):
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
		case r.URL.Query().Get("interval") == "5m":
			fmt.Fprint(w, intradayChart)
		default:
			fmt.Fprint(w, dailyChart)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_History(t *testing.T) {
	srv := newChartServer(t)
	c := NewClient(srv.URL, testConfig(), nil)

	s := c.History(context.Background(), "AAPL", "1mo")
	require.NotNil(t, s)
	assert.Equal(t, []float64{100, 101, 103}, s.Close, "null bars dropped")
	assert.Equal(t, []float64{1000, 1100, 1500}, s.Volume)
	assert.Len(t, s.Dates, 3)
}

func TestClient_DailyLastPrev(t *testing.T) {
	srv := newChartServer(t)
	c := NewClient(srv.URL, testConfig(), nil)

	last, prev, source := c.DailyLastPrev(context.Background(), "AAPL")
	require.NotNil(t, last)
	require.NotNil(t, prev)
	assert.Equal(t, 103.0, *last)
	assert.Equal(t, 101.0, *prev)
	assert.Equal(t, SourceYahoo, source)
}

func TestClient_IntradayOpenLast(t *testing.T) {
	srv := newChartServer(t)
	c := NewClient(srv.URL, testConfig(), nil)

	open, last, ok := c.IntradayOpenLast(context.Background(), "AAPL")
	require.True(t, ok)
	assert.Equal(t, 100.0, open, "first non-null open")
	assert.Equal(t, 105.0, last, "regular market price preferred")
}

func TestClient_MissingSymbolDegrades(t *testing.T) {
	srv := newChartServer(t)
	c := NewClient(srv.URL, testConfig(), nil)

	last, prev, source := c.DailyLastPrev(context.Background(), "MISSING")
	assert.Nil(t, last)
	assert.Nil(t, prev)
	assert.Equal(t, SourceNone, source)

	_, _, ok := c.IntradayOpenLast(context.Background(), "MISSING")
	assert.False(t, ok)
	assert.Nil(t, c.History(context.Background(), "MISSING", "9mo"))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, dailyChart)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testConfig(), nil)
	s := c.History(context.Background(), "AAPL", "5d")
	require.NotNil(t, s)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_BreakerOpensAfterFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxRetries = 1
	cfg.BreakerFailures = 2
	cfg.BreakerCooldown = time.Hour
	c := NewClient(srv.URL, cfg, nil)

	for i := 0; i < 5; i++ {
		assert.Nil(t, c.History(context.Background(), "AAPL", "5d"))
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "open breaker short-circuits requests")
}
