// Package diagnostics implements the two artifacts described in §4.H: an
// append-only JSONL event log rotated by size, and an atomically
// overwritten "latest snapshot" summary external tools read as ground
// truth.
package diagnostics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ftahirops/hostwarden/model"
)

const defaultMaxLogSize = 10 * 1024 * 1024

// Event is one line of diagnostics.jsonl. Only the fields relevant to Type
// are populated; the rest are omitted from the encoded JSON.
type Event struct {
	Type             string           `json:"type"`
	Timestamp        time.Time        `json:"timestamp"`
	Anomalies        []model.Finding  `json:"anomalies,omitempty"`
	ScannerTimings   []ScannerTiming  `json:"scannerTimings,omitempty"`
	IntegrityResults *IntegrityResult `json:"integrityResults,omitempty"`
	SystemState      map[string]any   `json:"systemState,omitempty"`
}

// ScannerTiming is one probe's duration within a scanComplete event.
type ScannerTiming struct {
	ID         string `json:"id"`
	DurationMs int64  `json:"durationMs"`
}

// IntegrityResult is one integrityProbe event's payload.
type IntegrityResult struct {
	Probe        string `json:"probe"`
	FindingCount int    `json:"findingCount"`
}

// Reporter owns the two diagnostics artifacts under dir: diagnostics.jsonl
// (append-only, rotated by size) and latest-snapshot.json (atomically
// overwritten). Writes are serialized by a single mutex, matching the
// "single write task" shared-resource policy from §5.
type Reporter struct {
	mu          sync.Mutex
	logPath     string
	snapPath    string
	maxLogSize  int64
}

// New returns a Reporter writing under dir, creating it if necessary.
func New(dir string) (*Reporter, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &Reporter{
		logPath:    filepath.Join(dir, "diagnostics.jsonl"),
		snapPath:   filepath.Join(dir, "latest-snapshot.json"),
		maxLogSize: defaultMaxLogSize,
	}, nil
}

// Append writes one event to diagnostics.jsonl, rotating the file first if
// it already exceeds the size threshold.
func (r *Reporter) Append(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.rotateIfOversizeLocked(); err != nil {
		return err
	}

	f, err := os.OpenFile(r.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	return enc.Encode(e)
}

func (r *Reporter) rotateIfOversizeLocked() error {
	info, err := os.Stat(r.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() < r.maxLogSize {
		return nil
	}
	rotated := filepath.Join(filepath.Dir(r.logPath), "diagnostics-"+epochSuffix()+".jsonl")
	return os.Rename(r.logPath, rotated)
}

func epochSuffix() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

// Snapshot is the pretty-printed ground-truth summary external tools read.
type Snapshot struct {
	Timestamp       time.Time      `json:"timestamp"`
	ProcessCount    int            `json:"process_count"`
	ConnectionCount int            `json:"connection_count"`
	AlertCount      int            `json:"alert_count"`
	AnomalyCount    int            `json:"anomaly_count"`
	CriticalCount   int            `json:"critical_count"`
	HighCount       int            `json:"high_count"`
	Anomalies       []model.Finding `json:"anomalies"`
	IntegrityStatus map[string]int  `json:"integrity_status"`
}

// WriteSnapshot atomically overwrites latest-snapshot.json (temp file +
// rename), so a reader never observes a partial write.
func (r *Reporter) WriteSnapshot(s Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.snapPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, r.snapPath)
}

// SnapshotFromResult builds the Snapshot§4.H shape from a completed scan.
func SnapshotFromResult(result model.ThreatScanResult) Snapshot {
	anomalies := result.Anomalies()
	critical, high := result.CountsBySeverity()

	integrityStatus := make(map[string]int, len(result.ScannerResults))
	for _, sr := range result.ScannerResults {
		integrityStatus[sr.ProbeID] = len(sr.Findings)
	}

	return Snapshot{
		Timestamp:       result.Timestamp,
		ProcessCount:    result.ProcessCount,
		ConnectionCount: result.ConnectionCount,
		AlertCount:      len(anomalies),
		AnomalyCount:    len(anomalies),
		CriticalCount:   critical,
		HighCount:       high,
		Anomalies:       anomalies,
		IntegrityStatus: integrityStatus,
	}
}

// EventFromResult builds the scanComplete event for a completed scan,
// recording per-probe timings.
func EventFromResult(result model.ThreatScanResult) Event {
	timings := make([]ScannerTiming, 0, len(result.ScannerResults))
	for _, sr := range result.ScannerResults {
		timings = append(timings, ScannerTiming{ID: sr.ProbeID, DurationMs: sr.Duration.Milliseconds()})
	}
	return Event{
		Type:           "scanComplete",
		Timestamp:      result.Timestamp,
		Anomalies:      result.Anomalies(),
		ScannerTimings: timings,
	}
}
