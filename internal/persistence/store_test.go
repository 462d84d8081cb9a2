package persistence

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ratemind.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadTorrentSnapshot(t *testing.T) {
	s := openTestStore(t)

	snap := TorrentSnapshot{
		Hash:               "abc123",
		Name:               "some.torrent",
		CycleStartTime:     100,
		CycleStartUploaded: 5000,
		CycleInterval:      1800,
		CycleSynced:        true,
		JumpCount:          2,
	}
	if err := s.SaveTorrentSnapshot(snap); err != nil {
		t.Fatalf("SaveTorrentSnapshot: %v", err)
	}

	loaded, err := s.LoadTorrentSnapshots()
	if err != nil {
		t.Fatalf("LoadTorrentSnapshots: %v", err)
	}

	got, ok := loaded["abc123"]
	if !ok {
		t.Fatal("expected snapshot for abc123")
	}
	if got.Name != snap.Name || got.CycleStartUploaded != snap.CycleStartUploaded || !got.CycleSynced {
		t.Fatalf("loaded snapshot mismatch: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("expected UpdatedAt to be stamped on save")
	}
}

func TestSaveTorrentSnapshotUpserts(t *testing.T) {
	s := openTestStore(t)

	s.SaveTorrentSnapshot(TorrentSnapshot{Hash: "h1", CycleInterval: 100})
	s.SaveTorrentSnapshot(TorrentSnapshot{Hash: "h1", CycleInterval: 200})

	loaded, err := s.LoadTorrentSnapshots()
	if err != nil {
		t.Fatalf("LoadTorrentSnapshots: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected exactly one snapshot after upsert, got %d", len(loaded))
	}
	if loaded["h1"].CycleInterval != 200 {
		t.Fatalf("expected latest save to win, got interval %v", loaded["h1"].CycleInterval)
	}
}

func TestDeleteTorrentSnapshot(t *testing.T) {
	s := openTestStore(t)

	s.SaveTorrentSnapshot(TorrentSnapshot{Hash: "gone"})
	if err := s.DeleteTorrentSnapshot("gone"); err != nil {
		t.Fatalf("DeleteTorrentSnapshot: %v", err)
	}

	loaded, err := s.LoadTorrentSnapshots()
	if err != nil {
		t.Fatalf("LoadTorrentSnapshots: %v", err)
	}
	if _, ok := loaded["gone"]; ok {
		t.Fatal("expected snapshot to be gone after delete")
	}
}

func TestAppendAndLoadCycleStats(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		if err := s.AppendCycleStat(CycleStats{Hash: "torrentA", Phase: "mid", Ratio: 0.9 + float64(i)*0.01}); err != nil {
			t.Fatalf("AppendCycleStat: %v", err)
		}
	}
	if err := s.AppendCycleStat(CycleStats{Hash: "torrentB", Phase: "mid", Ratio: 1.5}); err != nil {
		t.Fatalf("AppendCycleStat: %v", err)
	}

	stats, err := s.LoadCycleStats("torrentA")
	if err != nil {
		t.Fatalf("LoadCycleStats: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("expected 3 stats for torrentA, got %d", len(stats))
	}
	for _, stat := range stats {
		if stat.Hash != "torrentA" {
			t.Fatalf("LoadCycleStats leaked entry from another hash: %+v", stat)
		}
	}
}

func TestPruneCycleStatsRemovesOldEntries(t *testing.T) {
	s := openTestStore(t)

	old := CycleStats{Hash: "x", Ratio: 1.0}

	if err := s.AppendCycleStat(old); err != nil {
		t.Fatalf("AppendCycleStat: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	removed, err := s.PruneCycleStats(time.Millisecond)
	if err != nil {
		t.Fatalf("PruneCycleStats: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	stats, err := s.LoadCycleStats("x")
	if err != nil {
		t.Fatalf("LoadCycleStats: %v", err)
	}
	if len(stats) != 0 {
		t.Fatalf("expected no stats left after prune, got %d", len(stats))
	}
}

func TestRuntimeOverrideRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, ok := s.GetRuntimeOverride("missing"); ok {
		t.Fatal("expected GetRuntimeOverride to miss for unset key")
	}

	if err := s.SetRuntimeOverride("target_speed_kib", []byte("2048")); err != nil {
		t.Fatalf("SetRuntimeOverride: %v", err)
	}

	value, ok := s.GetRuntimeOverride("target_speed_kib")
	if !ok {
		t.Fatal("expected GetRuntimeOverride to find the persisted key")
	}
	if string(value) != "2048" {
		t.Fatalf("value = %q, want %q", value, "2048")
	}
}
