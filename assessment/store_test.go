package assessment

import (
	"testing"

	"github.com/ftahirops/hostwarden/model"
)

func TestStoreCurrentBeforePublish(t *testing.T) {
	s := New()
	_, ok := s.Current()
	if ok {
		t.Error("expected hasResult=false before the first Publish")
	}
}

func TestStorePublishUpdatesCurrent(t *testing.T) {
	s := New()
	s.Publish(model.ThreatScanResult{ProcessCount: 7})

	got, ok := s.Current()
	if !ok {
		t.Fatal("expected hasResult=true after Publish")
	}
	if got.ProcessCount != 7 {
		t.Errorf("ProcessCount = %d, want 7", got.ProcessCount)
	}
}

func TestStoreSubscribeNotifiesInOrder(t *testing.T) {
	s := New()
	var order []int
	s.Subscribe(func(model.ThreatScanResult) { order = append(order, 1) })
	s.Subscribe(func(model.ThreatScanResult) { order = append(order, 2) })

	s.Publish(model.ThreatScanResult{})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("notify order = %v, want [1 2]", order)
	}
}

func TestStoreSubscribeDoesNotReplay(t *testing.T) {
	s := New()
	s.Publish(model.ThreatScanResult{ProcessCount: 1})

	called := false
	s.Subscribe(func(model.ThreatScanResult) { called = true })
	if called {
		t.Error("Subscribe should not replay the already-published value")
	}
}
