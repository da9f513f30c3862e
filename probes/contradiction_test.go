package probes

import (
	"testing"
	"time"

	"github.com/ftahirops/hostwarden/model"
)

func TestCensusFindings(t *testing.T) {
	now := time.Now()
	paths := map[int]string{3: "/sbin/launchd", 4: "/usr/bin/ssh"}

	tests := []struct {
		name          string
		bsd, lp, mach map[int]bool
		wantPID       int
		wantTechnique string
		wantSeverity  model.Severity
	}{
		{
			name:          "present in BSD and libproc, absent from Mach -> DKOM",
			bsd:           map[int]bool{3: true},
			lp:            map[int]bool{3: true},
			mach:          map[int]bool{},
			wantPID:       3,
			wantTechnique: "DKOM Hidden Process",
			wantSeverity:  model.SeverityCritical,
		},
		{
			name:          "present only in Mach, absent elsewhere -> process hiding",
			bsd:           map[int]bool{},
			lp:            map[int]bool{},
			mach:          map[int]bool{4: true},
			wantPID:       4,
			wantTechnique: "Process Hiding",
			wantSeverity:  model.SeverityHigh,
		},
		{
			name: "present in all three sources -> no finding",
			bsd:  map[int]bool{3: true}, lp: map[int]bool{3: true}, mach: map[int]bool{3: true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			findings := censusFindings(tc.bsd, tc.lp, tc.mach, paths, now)
			if tc.wantTechnique == "" {
				if len(findings) != 0 {
					t.Fatalf("expected no findings, got %d", len(findings))
				}
				return
			}
			if len(findings) != 1 {
				t.Fatalf("expected 1 finding, got %d", len(findings))
			}
			f := findings[0]
			if f.PID != tc.wantPID {
				t.Errorf("PID = %d, want %d", f.PID, tc.wantPID)
			}
			if f.Technique != tc.wantTechnique {
				t.Errorf("Technique = %q, want %q", f.Technique, tc.wantTechnique)
			}
			if f.Severity != tc.wantSeverity {
				t.Errorf("Severity = %v, want %v", f.Severity, tc.wantSeverity)
			}
			if f.ScannerID != "process-census" {
				t.Errorf("ScannerID = %q, want process-census", f.ScannerID)
			}
		})
	}
}

func TestInjectedEntitlements(t *testing.T) {
	tests := []struct {
		name          string
		diskDangerous []string
		runtimeKeys   []string
		wantInjected  bool
	}{
		{
			name:          "get-task-allow present at runtime, absent on disk -> injected",
			diskDangerous: nil,
			runtimeKeys:   []string{"com.apple.security.get-task-allow"},
			wantInjected:  true,
		},
		{
			name:          "get-task-allow present at runtime and on disk -> not injected",
			diskDangerous: []string{"com.apple.security.get-task-allow"},
			runtimeKeys:   []string{"com.apple.security.get-task-allow"},
			wantInjected:  false,
		},
		{
			name:          "disable-library-validation injected at runtime, absent on disk -> injected",
			diskDangerous: nil,
			runtimeKeys:   []string{"com.apple.security.cs.disable-library-validation"},
			wantInjected:  true,
		},
		{
			name:          "no runtime keys -> nothing detected",
			diskDangerous: nil,
			runtimeKeys:   nil,
			wantInjected:  false,
		},
		{
			name:          "runtime key present but not dangerous -> nothing detected",
			diskDangerous: nil,
			runtimeKeys:   []string{"com.apple.application-identifier"},
			wantInjected:  false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := injectedEntitlements(tc.diskDangerous, tc.runtimeKeys)
			if tc.wantInjected && len(got) == 0 {
				t.Fatalf("expected an injected entitlement, got none")
			}
			if !tc.wantInjected && len(got) != 0 {
				t.Fatalf("expected no injected entitlements, got %v", got)
			}
		})
	}
}

func TestNVRAMMismatchFinding(t *testing.T) {
	now := time.Now()

	f, mismatched := nvramMismatchFinding(0x00000000, 0x00000077, now)
	if !mismatched {
		t.Fatal("expected a mismatch finding")
	}
	if f.Severity != model.SeverityCritical {
		t.Errorf("Severity = %v, want critical", f.Severity)
	}
	if f.Technique != "SIP NVRAM Mismatch" {
		t.Errorf("Technique = %q, want SIP NVRAM Mismatch", f.Technique)
	}

	if _, mismatched := nvramMismatchFinding(0x77, 0x77, now); mismatched {
		t.Error("expected no mismatch when kernel and NVRAM agree")
	}
}

func TestParseNVRAMCSR(t *testing.T) {
	tests := []struct {
		raw     string
		want    uint32
		wantOK  bool
	}{
		{"%00000077", 0x77, true},
		{"0x7f", 0x7f, true},
		{"", 0, false},
		{"not-hex", 0, false},
	}
	for _, tc := range tests {
		got, ok := parseNVRAMCSR(tc.raw)
		if ok != tc.wantOK || (ok && got != tc.want) {
			t.Errorf("parseNVRAMCSR(%q) = (%#x, %v), want (%#x, %v)", tc.raw, got, ok, tc.want, tc.wantOK)
		}
	}
}
