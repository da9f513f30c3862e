// Package assessment implements the single-writer value holder described
// in §5: the scan driver (the cmd/scan view) is the sole writer of the
// latest ThreatScanResult after each scan, and any number of observers
// (UI, CLI) read the current
// value or subscribe to be notified when it changes.
package assessment

import (
	"sync"

	"github.com/ftahirops/hostwarden/model"
)

// Observer is notified with the new result every time Publish is called.
type Observer func(model.ThreatScanResult)

// Store holds the most recent ThreatScanResult and fans out updates to
// registered observers. All access is serialized by one mutex; there is a
// single writer (the scan driver, via Publish) by construction.
type Store struct {
	mu        sync.RWMutex
	current   model.ThreatScanResult
	hasResult bool
	observers []Observer
}

// New returns an empty store with no result published yet.
func New() *Store {
	return &Store{}
}

// Publish records result as the current value and synchronously notifies
// every registered observer, in registration order.
func (s *Store) Publish(result model.ThreatScanResult) {
	s.mu.Lock()
	s.current = result
	s.hasResult = true
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, obs := range observers {
		obs(result)
	}
}

// Current returns the most recently published result and whether any scan
// has completed yet.
func (s *Store) Current() (model.ThreatScanResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.hasResult
}

// Subscribe registers obs to be called on every future Publish. It does not
// replay the current value; callers that need it should call Current first.
func (s *Store) Subscribe(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}
