package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/marketpulse/internal/models"
	"github.com/rewired-gh/marketpulse/internal/telegram"
)

const aaplDaily = `{"chart":{"result":[{"meta":{"symbol":"AAPL"},"timestamp":[1,2],
"indicators":{"quote":[{"open":[99,100],"close":[100,105],"volume":[1000,1200]}]}}],"error":null}}`

const aaplIntraday = `{"chart":{"result":[{"meta":{"symbol":"AAPL","regularMarketPrice":105},"timestamp":[1,2],
"indicators":{"quote":[{"open":[100,101],"close":[101,105],"volume":[10,12]}]}}],"error":null}}`

// newMarketServer serves AAPL charts and 404s everything else.
func newMarketServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/AAPL" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("range") == "1d" {
			fmt.Fprint(w, aaplIntraday)
			return
		}
		fmt.Fprint(w, aaplDaily)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	srv := newMarketServer(t)
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	cfg := fmt.Sprintf(`
universe:
  portfolio: [AAPL]
scoring:
  timezone: UTC
marketdata:
  base_url: %s
  max_retries: 1
  retry_delay_base: 1ms
news:
  feeds:
    - name: local
      url: "%s/rss/{symbol}"
storage:
  data_dir: %s
logging:
  level: error
`, srv.URL, srv.URL, dataDir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path, dataDir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSnapshotCommand_JSON(t *testing.T) {
	path, _ := writeConfig(t)

	out, err := run(t, "--config", path, "snapshot", "--json", "--reason", "test")
	require.NoError(t, err)

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "test", snap.Meta.Reason)
	require.Len(t, snap.Items, 3)
	assert.Equal(t, "AAPL", snap.Items[0].Ticker)
	require.NotNil(t, snap.Items[0].Pct1D)
	assert.InDelta(t, 5.0, *snap.Items[0].Pct1D, 1e-9)
	assert.Equal(t, models.Neutral, snap.Meta.Regime.Label)
	assert.Len(t, snap.Top, 2)
}

func TestSnapshotCommand_Text(t *testing.T) {
	path, _ := writeConfig(t)

	out, err := run(t, "--config", path, "snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "TOP")
	assert.Contains(t, out, "WORST")
	assert.Contains(t, out, "+5.00%")
}

func TestAlertsCommand_PersistsRepeatState(t *testing.T) {
	path, dataDir := writeConfig(t)

	out, err := run(t, "--config", path, "alerts")
	require.NoError(t, err)
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "+5.00%")
	assert.FileExists(t, filepath.Join(dataDir, "alerts.json"))

	out, err = run(t, "--config", path, "alerts")
	require.NoError(t, err)
	assert.Equal(t, "no alerts\n", out)
}

// newRejectingBot answers getMe but rejects every sendMessage.
func newRejectingBot(t *testing.T) *telegram.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"pulse","username":"pulse_bot"}}`)
			return
		}
		fmt.Fprint(w, `{"ok":false,"error_code":500,"description":"Internal Server Error"}`)
	}))
	t.Cleanup(srv.Close)
	c, err := telegram.NewClientWithEndpoint("token", "42", srv.URL+"/bot%s/%s", 1, time.Millisecond)
	require.NoError(t, err)
	return c
}

func TestAlerts_FailedPushLeavesAlertUnrecorded(t *testing.T) {
	path, _ := writeConfig(t)
	a, err := newApp(path)
	require.NoError(t, err)
	defer a.close()
	a.telegram = newRejectingBot(t)

	list, err := a.alerts(context.Background(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send alerts")
	require.Len(t, list, 1)
	_, ok := a.store.LastAlert(a.monitor.Today(), "AAPL")
	assert.False(t, ok)

	a.telegram = nil
	list, err = a.alerts(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	prior, ok := a.store.LastAlert(a.monitor.Today(), "AAPL")
	assert.True(t, ok)
	assert.InDelta(t, 5.0, prior, 1e-9)
}

func TestLearnCommand(t *testing.T) {
	path, dataDir := writeConfig(t)

	out, err := run(t, "--config", path, "learn", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "fallback_insufficient_samples")
	assert.NoFileExists(t, filepath.Join(dataDir, "learned_weights.json"))

	out, err = run(t, "--config", path, "learn")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "method fallback_insufficient_samples"))
	assert.FileExists(t, filepath.Join(dataDir, "learned_weights.json"))
	assert.FileExists(t, filepath.Join(dataDir, "learn_last.json"))
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "snapshot")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
