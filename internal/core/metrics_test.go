package core

import "testing"

func TestNewMetricsRegistersCollectorsWithoutPanicking(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}

	// Gathering must succeed against a freshly built registry; a
	// duplicate-registration bug would surface here as a panic from
	// MustRegister during construction, not here, but Gather still
	// catches a malformed collector definition.
	if _, err := m.reg.Gather(); err != nil {
		t.Fatalf("Gather() returned error: %v", err)
	}
}

func TestMetricsStopWithoutStartIsNoOp(t *testing.T) {
	m := NewMetrics()
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() on an unstarted server returned error: %v", err)
	}
}

func TestMetricsSnapshotFnWiring(t *testing.T) {
	m := NewMetrics()
	called := false
	m.SetSnapshotFn(func() []Status {
		called = true
		return []Status{{Hash: "abc"}}
	})

	snapshot := m.snapshotFn()
	if !called {
		t.Fatal("expected snapshotFn to be invoked")
	}
	if len(snapshot) != 1 || snapshot[0].Hash != "abc" {
		t.Fatalf("unexpected snapshot contents: %+v", snapshot)
	}
}
