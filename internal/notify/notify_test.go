package notify

import (
	"testing"
	"time"

	"github.com/raainshe/ratemind/internal/config"
)

func TestNewDisabledIsNoOp(t *testing.T) {
	n, err := New(config.NotifyConfig{Enabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := n.Start(); err != nil {
		t.Fatalf("Start on disabled notifier should be a no-op, got: %v", err)
	}
	if err := n.Stop(); err != nil {
		t.Fatalf("Stop on disabled notifier should be a no-op, got: %v", err)
	}

	// Alert must not panic even though session/channel are unset.
	n.Alert("key", "message")
	n.PrecisionClamped("hash", "name", 1.5, 2.0)
	n.ReannounceForced("hash", "name", "reason")
}

func TestAlertDedupWindow(t *testing.T) {
	n := &Notifier{enabled: false, lastSent: make(map[string]time.Time)}

	// Manually exercise the dedup bookkeeping the way Alert does,
	// without opening a real Discord session.
	n.mu.Lock()
	if _, ok := n.lastSent["k"]; ok {
		t.Fatal("expected key to be absent before first send")
	}
	n.lastSent["k"] = time.Now()
	n.mu.Unlock()

	n.mu.Lock()
	last, ok := n.lastSent["k"]
	recentEnough := ok && time.Since(last) < minRepeatInterval
	n.mu.Unlock()

	if !recentEnough {
		t.Fatal("expected the just-recorded send to fall within the dedup window")
	}
}
