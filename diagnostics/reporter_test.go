package diagnostics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ftahirops/hostwarden/model"
)

func TestReporterAppendAndRotate(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.maxLogSize = 64 // force rotation on the next append after this write

	if err := r.Append(Event{Type: "scanComplete", Timestamp: time.Now()}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	info, err := os.Stat(r.logPath)
	if err != nil {
		t.Fatalf("stat log: %v", err)
	}
	if info.Size() < r.maxLogSize {
		t.Skip("event too small to exceed the forced threshold on this platform")
	}

	if err := r.Append(Event{Type: "scanComplete", Timestamp: time.Now()}); err != nil {
		t.Fatalf("second Append: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "diagnostics-*.jsonl"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 rotated file, got %d: %v", len(matches), matches)
	}

	data, err := os.ReadFile(r.logPath)
	if err != nil {
		t.Fatalf("read current log: %v", err)
	}
	var got Event
	if err := json.Unmarshal(data[:len(data)-1], &got); err != nil {
		t.Fatalf("unmarshal current log: %v", err)
	}
	if got.Type != "scanComplete" {
		t.Errorf("Type = %q, want scanComplete", got.Type)
	}
}

func TestReporterWriteSnapshotIsAtomic(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snap := Snapshot{Timestamp: time.Now(), ProcessCount: 42, AlertCount: 3}
	if err := r.WriteSnapshot(snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	if _, err := os.Stat(r.snapPath + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("expected temp file to be gone after rename, stat err = %v", err)
	}

	data, err := os.ReadFile(r.snapPath)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var got Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if got.ProcessCount != 42 || got.AlertCount != 3 {
		t.Errorf("got %+v, want ProcessCount=42 AlertCount=3", got)
	}
}

func TestSnapshotFromResult(t *testing.T) {
	result := model.ThreatScanResult{
		Timestamp:       time.Now(),
		ProcessCount:    10,
		ConnectionCount: 5,
		ScannerResults: []model.ScannerResult{
			{
				ProbeID: "process-census",
				Findings: []model.Finding{
					{ID: "f1", Severity: model.SeverityCritical},
					{ID: "f2", Severity: model.SeverityHigh},
				},
			},
		},
	}

	snap := SnapshotFromResult(result)
	if snap.ProcessCount != 10 || snap.ConnectionCount != 5 {
		t.Errorf("got ProcessCount=%d ConnectionCount=%d, want 10/5", snap.ProcessCount, snap.ConnectionCount)
	}
	if snap.CriticalCount != 1 || snap.HighCount != 1 {
		t.Errorf("got CriticalCount=%d HighCount=%d, want 1/1", snap.CriticalCount, snap.HighCount)
	}
	if snap.IntegrityStatus["process-census"] != 2 {
		t.Errorf("IntegrityStatus[process-census] = %d, want 2", snap.IntegrityStatus["process-census"])
	}
}

func TestEventFromResult(t *testing.T) {
	result := model.ThreatScanResult{
		Timestamp: time.Now(),
		ScannerResults: []model.ScannerResult{
			{ProbeID: "sip-contradiction", Duration: 5 * time.Millisecond},
		},
	}
	ev := EventFromResult(result)
	if ev.Type != "scanComplete" {
		t.Errorf("Type = %q, want scanComplete", ev.Type)
	}
	if len(ev.ScannerTimings) != 1 || ev.ScannerTimings[0].ID != "sip-contradiction" {
		t.Fatalf("ScannerTimings = %+v", ev.ScannerTimings)
	}
	if ev.ScannerTimings[0].DurationMs != 5 {
		t.Errorf("DurationMs = %d, want 5", ev.ScannerTimings[0].DurationMs)
	}
}
