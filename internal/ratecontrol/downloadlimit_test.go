package ratecontrol

import "testing"

func TestCalcDownloadLimitNoOpBelowMinCycleTime(t *testing.T) {
	s := NewTorrentState("h", "n", 0, 0, 1<<30)
	limit, reason := CalcDownloadLimit(s, 100, 0, 1<<30, 100, 1000, 1000, 1)
	if limit != -1 || reason != "" {
		t.Fatalf("got (%d, %q), want (-1, \"\") before 2s of cycle time", limit, reason)
	}
}

func TestCalcDownloadLimitNoOpWhenUnderSpeedLimit(t *testing.T) {
	s := NewTorrentState("h", "n", 0, 0, 1<<30)
	limit, _ := CalcDownloadLimit(s, 1000, 0, 1<<30, 100, 1000, 1000, 10)
	if limit != -1 {
		t.Fatalf("limit = %d, want -1 when average speed is well under SpeedLimitBytes", limit)
	}
}

func TestCalcDownloadLimitEngagesWhenOverspeedAndImminentETA(t *testing.T) {
	s := NewTorrentState("h", "n", 0, 0, 1<<30)
	s.CycleStartUploaded = 0
	totalUploaded := int64(60 * 1024 * 1024 * 10) // ~60MiB/s average over 10s
	limit, reason := CalcDownloadLimit(s, totalUploaded, 0, 1<<30, 15, 60*1024*1024, 1000, 10)
	if limit < DLLimitMin {
		t.Fatalf("limit = %d, want >= DLLimitMin (%d) when overspeed with imminent ETA", limit, DLLimitMin)
	}
	if reason == "" {
		t.Fatal("expected a non-empty reason when engaging the limiter")
	}
}

func TestShouldReannounceRespectsCooldown(t *testing.T) {
	s := NewTorrentState("h", "n", 0, 0, 1<<30)
	s.LastReannounce = 1000
	ok, _ := ShouldReannounce(s, 0, 0, 1<<30, 0, 0, 1000+100)
	if ok {
		t.Fatal("should not reannounce within the cooldown window")
	}
}

func TestCheckWaitingReannounceNoOpWhenNotWaiting(t *testing.T) {
	s := NewTorrentState("h", "n", 0, 0, 1<<30)
	ok, reason := CheckWaitingReannounce(s, 0, 1000)
	if ok || reason != "" {
		t.Fatalf("got (%v, %q), want (false, \"\") when not flagged as waiting", ok, reason)
	}
}
