package probes

import (
	"testing"
	"time"

	"github.com/ftahirops/hostwarden/model"
)

func TestBeaconingDetectorAnalyze(t *testing.T) {
	d := NewBeaconingDetector()
	base := time.Now()
	offsets := []int{0, 60, 120, 180, 240}
	for _, off := range offsets {
		d.Record("/usr/bin/curl", "203.0.113.5:443", base.Add(time.Duration(off)*time.Second))
	}

	findings := d.Analyze(base.Add(300 * time.Second))
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Severity != model.SeverityHigh {
		t.Errorf("Severity = %v, want high", f.Severity)
	}
	if f.ScannerID != "network-anomaly-detector" {
		t.Errorf("ScannerID = %q, want network-anomaly-detector", f.ScannerID)
	}

	wantEvidence := "average_interval=60"
	found := false
	for _, ev := range f.Evidence {
		if ev == wantEvidence {
			found = true
		}
	}
	if !found {
		t.Errorf("Evidence = %v, want entry %q", f.Evidence, wantEvidence)
	}
}

func TestBeaconingDetectorIgnoresSparseOrNoisyIntervals(t *testing.T) {
	d := NewBeaconingDetector()
	base := time.Now()

	// Fewer than beaconMinSamples -> no finding.
	d.Record("/bin/sparse", "198.51.100.1:443", base)
	d.Record("/bin/sparse", "198.51.100.1:443", base.Add(60*time.Second))

	// High-variance intervals -> no finding.
	noisyOffsets := []int{0, 10, 500, 15, 900}
	for _, off := range noisyOffsets {
		d.Record("/bin/noisy", "198.51.100.2:443", base.Add(time.Duration(off)*time.Second))
	}

	findings := d.Analyze(base.Add(1000 * time.Second))
	if len(findings) != 0 {
		t.Fatalf("expected no findings, got %d: %+v", len(findings), findings)
	}
}

func TestBeaconingDetectorKeyEviction(t *testing.T) {
	d := NewBeaconingDetector()
	base := time.Now()
	for i := 0; i < beaconMaxKeys+5; i++ {
		d.Record("proc", itoa(i), base)
	}
	d.mu.Lock()
	count := len(d.rings)
	d.mu.Unlock()
	if count != beaconMaxKeys {
		t.Errorf("key count = %d, want %d", count, beaconMaxKeys)
	}
}
