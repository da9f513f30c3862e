// Package allowlist implements the persistent scanner_id -> set<match_key>
// store described in §4.E: a read-mostly map consulted once per probe
// result, written only by explicit admin actions outside a scan.
package allowlist

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/ftahirops/hostwarden/model"
)

// Store holds every AllowlistRule, keyed by scanner_id for fast lookup
// during Filter.
type Store struct {
	mu    sync.RWMutex
	rules map[string][]model.AllowlistRule
}

// New returns an empty store.
func New() *Store {
	return &Store{rules: make(map[string][]model.AllowlistRule)}
}

// Add registers a suppression rule. Safe to call concurrently with Filter.
func (s *Store) Add(rule model.AllowlistRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ScannerID] = append(s.rules[rule.ScannerID], rule)
}

// Remove drops every rule for scannerID whose match key equals matchKey.
func (s *Store) Remove(scannerID, matchKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rules[scannerID][:0]
	for _, r := range s.rules[scannerID] {
		if r.MatchKey != matchKey {
			kept = append(kept, r)
		}
	}
	s.rules[scannerID] = kept
}

// Filter drops every finding in findings whose canonical key matches an
// active rule for scannerID, returning the survivors and the suppressed
// count — callers must surface the count, never silently drop it to zero.
func (s *Store) Filter(findings []model.Finding, scannerID string) ([]model.Finding, int) {
	s.mu.RLock()
	rules := s.rules[scannerID]
	s.mu.RUnlock()
	if len(rules) == 0 {
		return findings, 0
	}

	now := time.Now()
	active := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.Active(now) {
			active[r.MatchKey] = true
		}
	}
	if len(active) == 0 {
		return findings, 0
	}

	var kept []model.Finding
	suppressed := 0
	for _, f := range findings {
		if key := f.CanonicalKey(); key != "" && active[key] {
			suppressed++
			continue
		}
		kept = append(kept, f)
	}
	return kept, suppressed
}

// fileFormat is the on-disk shape of a Store — a flat list rather than the
// in-memory per-scanner map, so Save/Load round-trip without exposing the
// map's iteration order.
type fileFormat struct {
	Rules []model.AllowlistRule `json:"rules"`
}

// Save atomically writes the store to path (temp file + rename).
func (s *Store) Save(path string) error {
	s.mu.RLock()
	var all []model.AllowlistRule
	for _, rs := range s.rules {
		all = append(all, rs...)
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(fileFormat{Rules: all}, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a store previously written by Save, returning an empty store
// (not an error) if path does not yet exist.
func Load(path string) *Store {
	s := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var f fileFormat
	if json.Unmarshal(data, &f) != nil {
		return s
	}
	for _, r := range f.Rules {
		s.Add(r)
	}
	return s
}
