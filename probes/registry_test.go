package probes

import (
	"testing"

	"github.com/ftahirops/hostwarden/model"
)

func TestNewRegistryEntriesAreWellFormed(t *testing.T) {
	r := NewRegistry(&model.PersistenceLabels{}, nil)
	entries := r.Entries()
	if len(entries) == 0 {
		t.Fatal("expected at least one probe entry")
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			t.Errorf("entry %+v has an empty ID", e)
		}
		if seen[e.ID] {
			t.Errorf("duplicate probe ID %q", e.ID)
		}
		seen[e.ID] = true
		if e.Run == nil {
			t.Errorf("entry %q has a nil Run func", e.ID)
		}
		if e.Tier != model.TierFast && e.Tier != model.TierMedium && e.Tier != model.TierSlow {
			t.Errorf("entry %q has unexpected tier %v", e.ID, e.Tier)
		}
	}
}

func TestNewRegistryAcceptsNilTCCBaseline(t *testing.T) {
	r := NewRegistry(nil, nil)
	if r == nil {
		t.Fatal("expected a non-nil registry with nil baseline inputs")
	}
}
