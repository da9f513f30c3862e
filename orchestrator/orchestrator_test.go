package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/ftahirops/hostwarden/model"
)

// TestRunTierOrdering verifies that every fast probe completes before any
// medium probe starts, and every medium probe completes before any slow
// probe starts — the full-barrier guarantee runTier gives later tiers.
func TestRunTierOrdering(t *testing.T) {
	var mu sync.Mutex
	var order []string

	record := func(name string) model.RunFunc {
		return func(ctx *model.ScanContext) []model.Finding {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	entries := []model.ProbeEntry{
		{ID: "fast-a", DisplayName: "fast a", Tier: model.TierFast, Run: record("fast-a")},
		{ID: "fast-b", DisplayName: "fast b", Tier: model.TierFast, Run: record("fast-b")},
		{ID: "medium-a", DisplayName: "medium a", Tier: model.TierMedium, Run: record("medium-a")},
		{ID: "slow-a", DisplayName: "slow a", Tier: model.TierSlow, Run: record("slow-a")},
	}

	orch := New(entries)
	result, err := orch.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.ScannerResults) != len(entries) {
		t.Fatalf("got %d scanner results, want %d", len(result.ScannerResults), len(entries))
	}

	tierOf := map[string]int{}
	for i, name := range order {
		tierOf[name] = i
	}
	lastFast := tierOf["fast-a"]
	if tierOf["fast-b"] > lastFast {
		lastFast = tierOf["fast-b"]
	}
	if tierOf["medium-a"] < lastFast {
		t.Errorf("medium-a ran at index %d before fast probes finished at %d", tierOf["medium-a"], lastFast)
	}
	if tierOf["slow-a"] < tierOf["medium-a"] {
		t.Errorf("slow-a ran at index %d before medium-a at %d", tierOf["slow-a"], tierOf["medium-a"])
	}
}

func TestRunReportsProgressPerTier(t *testing.T) {
	entries := []model.ProbeEntry{
		{ID: "a", DisplayName: "a", Tier: model.TierFast, Run: func(ctx *model.ScanContext) []model.Finding { return nil }},
		{ID: "b", DisplayName: "b", Tier: model.TierFast, Run: func(ctx *model.ScanContext) []model.Finding { return nil }},
	}

	var mu sync.Mutex
	var updates []model.Progress
	orch := New(entries)
	_, err := orch.Run(context.Background(), Options{
		OnProgress: func(p model.Progress) {
			mu.Lock()
			updates = append(updates, p)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("got %d progress updates, want 2", len(updates))
	}
	if updates[len(updates)-1].Completed != 2 || updates[len(updates)-1].Total != 2 {
		t.Errorf("final progress = %+v, want Completed=2 Total=2", updates[len(updates)-1])
	}
}

func TestRunSkipsEmptyTiers(t *testing.T) {
	entries := []model.ProbeEntry{
		{ID: "only-slow", DisplayName: "only slow", Tier: model.TierSlow, Run: func(ctx *model.ScanContext) []model.Finding {
			return []model.Finding{{ID: "f1"}}
		}},
	}
	orch := New(entries)
	result, err := orch.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.ScannerResults) != 1 {
		t.Fatalf("got %d scanner results, want 1", len(result.ScannerResults))
	}
	if len(result.ScannerResults[0].Findings) != 1 {
		t.Errorf("got %d findings, want 1", len(result.ScannerResults[0].Findings))
	}
}
