package probes

import (
	"sync"
	"time"

	"github.com/ftahirops/hostwarden/model"
)

const (
	ransomwareWindow       = 5 * time.Second
	ransomwareMinWrites    = 3
	ransomwareEncryptedEnt = 7.5
)

// fileWriteEvent is one observed post-write sample: the path written, the
// Shannon entropy of its content immediately after the write, and when.
type fileWriteEvent struct {
	path    string
	entropy float64
	at      time.Time
}

// RansomwareDetector maintains a per-PID ring of recent file-write events
// and fires once per PID when three or more high-entropy writes land
// within a 5-second window, confined behind Record/Analyze (§4.C, §5).
type RansomwareDetector struct {
	mu      sync.Mutex
	ring    map[int][]fileWriteEvent
	fired   map[int]bool
	process map[int]string
}

// NewRansomwareDetector returns an empty detector.
func NewRansomwareDetector() *RansomwareDetector {
	return &RansomwareDetector{
		ring:    make(map[int][]fileWriteEvent),
		fired:   make(map[int]bool),
		process: make(map[int]string),
	}
}

// Record accounts one post-write observation for pid: path was written to
// at time at, and its content now has the given Shannon entropy.
func (r *RansomwareDetector) Record(pid int, processName, path string, entropy float64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.process[pid] = processName
	events := r.ring[pid]
	events = append(events, fileWriteEvent{path: path, entropy: entropy, at: at})

	cutoff := at.Add(-ransomwareWindow)
	kept := events[:0]
	for _, e := range events {
		if !e.at.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	r.ring[pid] = kept
}

// Analyze checks every PID's ring for the ransomware signature: at least 3
// high-entropy writes within the trailing 5-second window. Fires at most
// once per PID across the detector's lifetime.
func (r *RansomwareDetector) Analyze(now time.Time) []model.Finding {
	r.mu.Lock()
	defer r.mu.Unlock()

	var findings []model.Finding
	for pid, events := range r.ring {
		if r.fired[pid] {
			continue
		}
		encrypted := 0
		var samplePath string
		for _, e := range events {
			if e.entropy >= ransomwareEncryptedEnt {
				encrypted++
				samplePath = e.path
			}
		}
		if encrypted < ransomwareMinWrites {
			continue
		}
		r.fired[pid] = true
		findings = append(findings, model.Finding{
			ID:          model.NewFindingID(),
			Kind:        model.KindFilesystem,
			PID:         pid,
			ProcessName: r.process[pid],
			Technique:   "Ransomware Behavior Detector",
			Description: "process wrote multiple high-entropy files in rapid succession",
			Severity:    model.SeverityCritical,
			MitreID:     "T1486",
			ScannerID:   "ransomware-behavior-detector",
			Evidence: []string{
				"path=" + samplePath,
				"pid=" + itoa(pid),
				"high_entropy_write_count=" + itoa(encrypted),
			},
			Timestamp: now,
		})
	}
	return findings
}
