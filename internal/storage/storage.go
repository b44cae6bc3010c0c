// Package storage provides JSON-file persistence for sent-report flags,
// per-day alert levels, and learned weights.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rewired-gh/marketpulse/internal/logger"
	"github.com/rewired-gh/marketpulse/internal/models"
)

const (
	SentFile    = "sent.json"
	AlertsFile  = "alerts.json"
	WeightsFile = "learned_weights.json"
	LearnFile   = "learn_last.json"
)

// Storage holds the persisted state maps in memory. Load once, mutate, Save once.
// All methods are safe for concurrent use.
type Storage struct {
	mu      sync.Mutex
	dataDir string

	sent   map[string]string             // tag -> day
	alerts map[string]map[string]float64 // day -> ticker -> pct
}

// New creates the data directory if needed and loads sent.json and alerts.json.
// Missing or unreadable files start empty.
func New(dataDir string) (*Storage, error) {
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "marketpulse")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Storage{
		dataDir: dataDir,
		sent:    make(map[string]string),
		alerts:  make(map[string]map[string]float64),
	}
	if err := s.readJSON(SentFile, &s.sent); err != nil {
		logger.Warn("Ignoring unreadable %s: %v", SentFile, err)
		s.sent = make(map[string]string)
	}
	if err := s.readJSON(AlertsFile, &s.alerts); err != nil {
		logger.Warn("Ignoring unreadable %s: %v", AlertsFile, err)
		s.alerts = make(map[string]map[string]float64)
	}
	if s.sent == nil {
		s.sent = make(map[string]string)
	}
	if s.alerts == nil {
		s.alerts = make(map[string]map[string]float64)
	}
	return s, nil
}

// DataDir returns the directory holding the state files.
func (s *Storage) DataDir() string {
	return s.dataDir
}

// Save writes sent.json and alerts.json.
func (s *Storage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeJSON(SentFile, s.sent); err != nil {
		return fmt.Errorf("failed to save sent flags: %w", err)
	}
	if err := s.writeJSON(AlertsFile, s.alerts); err != nil {
		return fmt.Errorf("failed to save alert state: %w", err)
	}
	return nil
}

// Close persists the state. It exists so callers can defer it like any store.
func (s *Storage) Close() error {
	return s.Save()
}

// WasSent reports whether the report tag was already dispatched on day.
func (s *Storage) WasSent(tag, day string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[tag] == day
}

func (s *Storage) MarkSent(tag, day string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[tag] = day
}

// LastAlert returns the last alerted percentage for ticker on day.
func (s *Storage) LastAlert(day, ticker string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pct, ok := s.alerts[day][ticker]
	return pct, ok
}

// RecordAlert replaces the alert level for (day, ticker).
func (s *Storage) RecordAlert(day, ticker string, pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alerts[day] == nil {
		s.alerts[day] = make(map[string]float64)
	}
	s.alerts[day][ticker] = pct
}

// CleanupAlerts drops every day other than today and returns how many were removed.
func (s *Storage) CleanupAlerts(today string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for day := range s.alerts {
		if day != today {
			delete(s.alerts, day)
			removed++
		}
	}
	return removed
}

// LoadWeights returns the persisted learned weights, or nil when none exist.
func (s *Storage) LoadWeights() (models.WeightVector, error) {
	var w models.WeightVector
	if err := s.readJSON(WeightsFile, &w); err != nil {
		return nil, fmt.Errorf("failed to load learned weights: %w", err)
	}
	if len(w) == 0 {
		return nil, nil
	}
	return w, nil
}

// SaveWeights overwrites the learned weights file.
func (s *Storage) SaveWeights(w models.WeightVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeJSON(WeightsFile, w); err != nil {
		return fmt.Errorf("failed to save learned weights: %w", err)
	}
	return nil
}

// SaveLearnResult keeps the most recent learning run for inspection.
func (s *Storage) SaveLearnResult(r *models.LearnResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeJSON(LearnFile, r); err != nil {
		return fmt.Errorf("failed to save learn result: %w", err)
	}
	return nil
}

// readJSON decodes name into v. A missing file leaves v untouched.
func (s *Storage) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dataDir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// writeJSON replaces name atomically via a temp file and rename.
func (s *Storage) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dataDir, name+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dataDir, name))
}
