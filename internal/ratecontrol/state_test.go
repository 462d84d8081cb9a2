package ratecontrol

import "testing"

func TestNewTorrentStateStartsUnsynced(t *testing.T) {
	s := NewTorrentState("abc123", "test.torrent", 0, 0, 1<<30)
	if s.CycleSynced {
		t.Fatal("a fresh state should not be cycle-synced")
	}
	if s.GetPhase(1000) != PhaseWarmup {
		t.Fatalf("unsynced phase = %v, want warmup regardless of tl", s.GetPhase(1000))
	}
}

func TestNewCycleSyncsOnSecondJump(t *testing.T) {
	s := NewTorrentState("abc123", "test.torrent", 0, 0, 1<<30)

	s.NewCycle(100, 1000, 1800, true)
	if s.CycleSynced {
		t.Fatal("should not sync after only one jump")
	}

	s.NewCycle(1900, 5000, 1800, true)
	if !s.CycleSynced {
		t.Fatal("should sync after the second jump")
	}
	if s.CycleInterval != 1900-100 {
		t.Fatalf("CycleInterval = %v, want %v", s.CycleInterval, 1900.0-100.0)
	}
}

func TestUploadedInCycleNeverNegative(t *testing.T) {
	s := NewTorrentState("abc123", "test.torrent", 0, 5000, 1<<30)
	// Counter went backwards (e.g. torrent re-added) — should clamp to 0.
	if got := s.UploadedInCycle(1000); got != 0 {
		t.Fatalf("UploadedInCycle = %d, want 0 when counter regresses", got)
	}
}

func TestGetAnnounceIntervalByAge(t *testing.T) {
	s := NewTorrentState("abc123", "test.torrent", 0, 0, 1<<30)
	if got := s.GetAnnounceInterval(86400); got != 1800 {
		t.Fatalf("1 day old: interval = %v, want 1800", got)
	}
	if got := s.GetAnnounceInterval(10 * 86400); got != 2700 {
		t.Fatalf("10 days old: interval = %v, want 2700", got)
	}
	if got := s.GetAnnounceInterval(40 * 86400); got != 3600 {
		t.Fatalf("40 days old: interval = %v, want 3600", got)
	}
}

func TestObserveTLDetectsJumpFromSteadyPhaseCountdown(t *testing.T) {
	s := NewTorrentState("abc123", "test.torrent", 0, 0, 1<<30)

	// First sample anchors lastObservedTL; no rollover expected yet.
	if got := s.ObserveTL(0, 1000, 60); got {
		t.Fatal("first observation should never report a jump")
	}

	// tl jumps from 60 (steady phase) to 1750 — an upward jump of far
	// more than 30s, which must be detected as an announce regardless
	// of the previous sample's absolute value.
	if !s.ObserveTL(60, 2000, 1750) {
		t.Fatal("expected a jump to be detected for tl going 60 -> 1750")
	}
	if s.CycleIndex != 1 {
		t.Fatalf("CycleIndex = %d, want 1 after the detected jump", s.CycleIndex)
	}
}

func TestObserveTLIgnoresSmallFluctuations(t *testing.T) {
	s := NewTorrentState("abc123", "test.torrent", 0, 0, 1<<30)

	s.ObserveTL(0, 1000, 100)
	if got := s.ObserveTL(10, 1100, 115); got {
		t.Fatal("a 15s increase should not be treated as a jump")
	}
}

func TestGetTLUsesCacheWithinTTL(t *testing.T) {
	s := NewTorrentState("abc123", "test.torrent", 0, 0, 1<<30)
	calls := 0
	fetch := func() (float64, error) {
		calls++
		return 42, nil
	}

	tl, err := s.GetTL(0, PhaseSteady, fetch)
	if err != nil || tl != 42 {
		t.Fatalf("GetTL = (%v, %v), want (42, nil)", tl, err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	// Within the steady-phase TTL (0.5s): should hit the cache.
	tl, err = s.GetTL(0.1, PhaseSteady, fetch)
	if err != nil || tl != 42 {
		t.Fatalf("cached GetTL = (%v, %v), want (42, nil)", tl, err)
	}
	if calls != 1 {
		t.Fatalf("calls after cached read = %d, want still 1", calls)
	}

	// Past the TTL: should refetch.
	_, _ = s.GetTL(10, PhaseSteady, fetch)
	if calls != 2 {
		t.Fatalf("calls after TTL expiry = %d, want 2", calls)
	}
}
