package allowlist

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ftahirops/hostwarden/model"
)

func TestStoreFilterSuppressesMatchingKey(t *testing.T) {
	s := New()
	s.Add(model.AllowlistRule{ScannerID: "process-census", MatchKey: "/usr/bin/known-tool"})

	findings := []model.Finding{
		{ID: "f1", Evidence: []string{"path=/usr/bin/known-tool"}},
		{ID: "f2", Evidence: []string{"path=/usr/bin/unrelated"}},
	}

	kept, suppressed := s.Filter(findings, "process-census")
	if suppressed != 1 {
		t.Fatalf("suppressed = %d, want 1", suppressed)
	}
	if len(kept) != 1 || kept[0].ID != "f2" {
		t.Fatalf("kept = %+v, want only f2", kept)
	}
}

func TestStoreFilterIgnoresExpiredRule(t *testing.T) {
	s := New()
	s.Add(model.AllowlistRule{
		ScannerID: "sip-contradiction",
		MatchKey:  "/usr/bin/tool",
		ExpiresAt: time.Now().Add(-time.Hour),
	})

	findings := []model.Finding{{ID: "f1", Evidence: []string{"path=/usr/bin/tool"}}}
	kept, suppressed := s.Filter(findings, "sip-contradiction")
	if suppressed != 0 {
		t.Errorf("suppressed = %d, want 0 for an expired rule", suppressed)
	}
	if len(kept) != 1 {
		t.Errorf("kept = %+v, want the finding to survive", kept)
	}
}

func TestStoreFilterOtherScannerUnaffected(t *testing.T) {
	s := New()
	s.Add(model.AllowlistRule{ScannerID: "process-census", MatchKey: "/usr/bin/tool"})

	findings := []model.Finding{{ID: "f1", Evidence: []string{"path=/usr/bin/tool"}}}
	kept, suppressed := s.Filter(findings, "sip-contradiction")
	if suppressed != 0 || len(kept) != 1 {
		t.Errorf("got kept=%+v suppressed=%d, want unaffected", kept, suppressed)
	}
}

func TestStoreRemove(t *testing.T) {
	s := New()
	s.Add(model.AllowlistRule{ScannerID: "process-census", MatchKey: "/usr/bin/tool"})
	s.Remove("process-census", "/usr/bin/tool")

	findings := []model.Finding{{ID: "f1", Evidence: []string{"path=/usr/bin/tool"}}}
	kept, suppressed := s.Filter(findings, "process-census")
	if suppressed != 0 || len(kept) != 1 {
		t.Errorf("got kept=%+v suppressed=%d, want rule removed", kept, suppressed)
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowlist.json")
	s := New()
	s.Add(model.AllowlistRule{ScannerID: "process-census", MatchKey: "/usr/bin/tool"})
	s.Add(model.AllowlistRule{ScannerID: "sip-contradiction", MatchKey: "abc123"})

	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := Load(path)
	findings := []model.Finding{{ID: "f1", Evidence: []string{"path=/usr/bin/tool"}}}
	kept, suppressed := loaded.Filter(findings, "process-census")
	if suppressed != 1 || len(kept) != 0 {
		t.Errorf("got kept=%+v suppressed=%d after round-trip, want suppressed", kept, suppressed)
	}
}

func TestLoadMissingFileReturnsEmptyStore(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	findings := []model.Finding{{ID: "f1", Evidence: []string{"path=/usr/bin/tool"}}}
	kept, suppressed := s.Filter(findings, "process-census")
	if suppressed != 0 || len(kept) != 1 {
		t.Errorf("got kept=%+v suppressed=%d, want no rules applied", kept, suppressed)
	}
}
