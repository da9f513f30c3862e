package correlation

import (
	"testing"

	"github.com/ftahirops/hostwarden/model"
)

func resultsOf(findings ...model.Finding) []model.ScannerResult {
	return []model.ScannerResult{{Findings: findings}}
}

func TestInjectionChainRule(t *testing.T) {
	e := NewEngine()
	findings := resultsOf(
		model.Finding{ID: "h1", PID: 501, ScannerID: "dylib-hijack"},
		model.Finding{ID: "r1", PID: 501, ScannerID: "memory-scan"},
		model.Finding{ID: "h2", PID: 999, ScannerID: "dylib-hijack"},
	)
	composites := e.Run(findings)
	if len(composites) != 1 {
		t.Fatalf("got %d composites, want 1: %+v", len(composites), composites)
	}
	c := composites[0]
	if c.Rule != "injection chain" || c.Severity != model.SeverityCritical {
		t.Errorf("got %+v, want injection chain / critical", c)
	}
}

func TestBootWeakeningRule(t *testing.T) {
	e := NewEngine()
	findings := resultsOf(
		model.Finding{ID: "a1", ScannerID: "system-integrity", Description: "AMFI disabled via boot-arg"},
		model.Finding{ID: "a2", ScannerID: "boot-security", Description: "Non-Production trust cache loaded"},
	)
	composites := e.Run(findings)
	if len(composites) != 1 {
		t.Fatalf("got %d composites, want 1: %+v", len(composites), composites)
	}
	if composites[0].Rule != "boot weakening" {
		t.Errorf("Rule = %q, want boot weakening", composites[0].Rule)
	}
}

func TestPersistenceMasqueradeRule(t *testing.T) {
	e := NewEngine()
	findings := resultsOf(
		model.Finding{ID: "p1", ScannerID: "persistence-scanner", ProcessPath: "/tmp/fakeupdated"},
		model.Finding{ID: "m1", ScannerID: "masquerade", ProcessPath: "/tmp/fakeupdated"},
	)
	composites := e.Run(findings)
	if len(composites) != 1 {
		t.Fatalf("got %d composites, want 1", len(composites))
	}
	if composites[0].Rule != "persistence + masquerade" {
		t.Errorf("Rule = %q, want persistence + masquerade", composites[0].Rule)
	}
}

func TestCredentialTheftStagingRule(t *testing.T) {
	e := NewEngine()
	findings := resultsOf(
		model.Finding{ID: "t1", ScannerID: "tcc-monitor", Evidence: []string{"service=SystemPolicyAllFiles"}},
		model.Finding{ID: "l1", ScannerID: "lolbin-abuse", Evidence: []string{"path=/Users/x/Library/Application Support/com.apple.TCC/TCC.db"}},
	)
	composites := e.Run(findings)
	if len(composites) != 1 {
		t.Fatalf("got %d composites, want 1", len(composites))
	}
	if composites[0].Rule != "credential theft staging" {
		t.Errorf("Rule = %q, want credential theft staging", composites[0].Rule)
	}
}

func TestEngineRunWithNoMatchingRulesReturnsNil(t *testing.T) {
	e := NewEngine()
	findings := resultsOf(model.Finding{ID: "x1", ScannerID: "process-census"})
	composites := e.Run(findings)
	if len(composites) != 0 {
		t.Errorf("got %d composites, want 0", len(composites))
	}
}

func TestEngineRunWithNoFindingsReturnsNil(t *testing.T) {
	e := NewEngine()
	if got := e.Run(nil); got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}
