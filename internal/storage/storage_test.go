package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/marketpulse/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	return s
}

func TestStorage_SentFlags(t *testing.T) {
	s := newTestStorage(t)

	assert.False(t, s.WasSent("morning", "2026-10-16"))
	s.MarkSent("morning", "2026-10-16")
	assert.True(t, s.WasSent("morning", "2026-10-16"))
	assert.False(t, s.WasSent("morning", "2026-10-17"))
	assert.False(t, s.WasSent("evening", "2026-10-16"))
}

func TestStorage_AlertLevels(t *testing.T) {
	s := newTestStorage(t)

	_, ok := s.LastAlert("2026-10-16", "AAPL")
	assert.False(t, ok)

	s.RecordAlert("2026-10-16", "AAPL", 4.0)
	s.RecordAlert("2026-10-16", "AAPL", 4.7)
	pct, ok := s.LastAlert("2026-10-16", "AAPL")
	require.True(t, ok)
	assert.Equal(t, 4.7, pct, "one entry per day and ticker")
}

func TestStorage_CleanupAlerts(t *testing.T) {
	s := newTestStorage(t)
	s.RecordAlert("2026-10-14", "AAPL", 3.1)
	s.RecordAlert("2026-10-15", "MSFT", -3.4)
	s.RecordAlert("2026-10-16", "NVDA", 5.0)

	removed := s.CleanupAlerts("2026-10-16")
	assert.Equal(t, 2, removed)

	_, ok := s.LastAlert("2026-10-14", "AAPL")
	assert.False(t, ok)
	_, ok = s.LastAlert("2026-10-16", "NVDA")
	assert.True(t, ok)
}

func TestStorage_SaveAndReload(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	s.MarkSent("evening", "2026-10-16")
	s.RecordAlert("2026-10-16", "TSLA", -6.2)
	require.NoError(t, s.Save())

	for _, name := range []string{SentFile, AlertsFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	reloaded, err := New(dir)
	require.NoError(t, err)
	assert.True(t, reloaded.WasSent("evening", "2026-10-16"))
	pct, ok := reloaded.LastAlert("2026-10-16", "TSLA")
	require.True(t, ok)
	assert.Equal(t, -6.2, pct)
}

func TestStorage_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, AlertsFile), []byte("{not json"), 0o644))

	s, err := New(dir)
	require.NoError(t, err)
	_, ok := s.LastAlert("2026-10-16", "AAPL")
	assert.False(t, ok)
}

func TestStorage_Weights(t *testing.T) {
	s := newTestStorage(t)

	w, err := s.LoadWeights()
	require.NoError(t, err)
	assert.Nil(t, w)

	want := models.WeightVector{
		models.CategoryMomentum:    0.25,
		models.CategoryRelStrength: 0.25,
		models.CategoryVolume:      0.2,
		models.CategoryCatalyst:    0.15,
		models.CategoryRegime:      0.15,
	}
	require.NoError(t, s.SaveWeights(want))

	got, err := s.LoadWeights()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// overwrite, no history kept
	require.NoError(t, s.SaveWeights(models.EqualWeights()))
	got, err = s.LoadWeights()
	require.NoError(t, err)
	assert.InDelta(t, 0.2, got[models.CategoryMomentum], 1e-12)
}

func TestStorage_SaveLearnResult(t *testing.T) {
	s := newTestStorage(t)
	r := &models.LearnResult{
		RunID:     "run-1",
		Before:    models.EqualWeights(),
		After:     models.EqualWeights(),
		Method:    "corr_blend_v1",
		LearnedAt: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveLearnResult(r))

	data, err := os.ReadFile(filepath.Join(s.DataDir(), LearnFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"method": "corr_blend_v1"`)
}
