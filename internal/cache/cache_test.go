package cache

import (
	"testing"
	"time"

	"github.com/raainshe/ratemind/internal/config"
	"github.com/raainshe/ratemind/internal/qbittorrent"
)

func newTestManager(t *testing.T) *CacheManager {
	t.Helper()
	cm, err := Initialize(&config.CacheConfig{
		AuthSessionTTL:  time.Minute,
		CleanupInterval: time.Minute,
		MaxItems:        100,
	})
	if err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	return cm
}

func TestAuthSessionRoundTrip(t *testing.T) {
	cm := newTestManager(t)

	if _, found := cm.GetAuthSession(); found {
		t.Fatal("expected no auth session before Set")
	}

	session := NewAuthSession("SID=abc123", time.Hour)
	cm.SetAuthSession(session)

	got, found := cm.GetAuthSession()
	if !found {
		t.Fatal("expected auth session to be found after Set")
	}
	if got.Cookie != session.Cookie {
		t.Errorf("got cookie %q, want %q", got.Cookie, session.Cookie)
	}

	cm.DeleteAuthSession()
	if _, found := cm.GetAuthSession(); found {
		t.Fatal("expected auth session to be gone after Delete")
	}
}

func TestIsAuthSessionValidExpires(t *testing.T) {
	cm := newTestManager(t)

	expired := NewAuthSession("SID=expired", -time.Second)
	cm.SetAuthSession(expired)

	if cm.IsAuthSessionValid() {
		t.Error("expected expired session to be invalid")
	}
	if _, found := cm.GetAuthSession(); found {
		t.Error("expected expired session to be evicted by IsAuthSessionValid")
	}
}

func TestPropertiesRoundTrip(t *testing.T) {
	cm := newTestManager(t)
	hash := "abc123"
	props := &qbittorrent.TorrentProperties{}

	if _, found := cm.GetProperties(hash); found {
		t.Fatal("expected no cached properties before Set")
	}

	cm.SetProperties(hash, props, time.Minute)

	got, found := cm.GetProperties(hash)
	if !found {
		t.Fatal("expected properties to be found after Set")
	}
	if got != props {
		t.Error("expected GetProperties to return the exact stored pointer")
	}

	cm.DeleteProperties(hash)
	if _, found := cm.GetProperties(hash); found {
		t.Fatal("expected properties to be gone after Delete")
	}
}

func TestPropertiesExpireOnTTL(t *testing.T) {
	cm := newTestManager(t)
	hash := "shortlived"

	cm.SetProperties(hash, &qbittorrent.TorrentProperties{}, time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	if _, found := cm.GetProperties(hash); found {
		t.Error("expected properties to have expired")
	}
}

func TestServerStateRoundTrip(t *testing.T) {
	cm := newTestManager(t)
	state := &qbittorrent.ServerState{}

	cm.SetServerState(state)
	got, found := cm.GetServerState()
	if !found {
		t.Fatal("expected server state to be found after Set")
	}
	if got != state {
		t.Error("expected GetServerState to return the exact stored pointer")
	}

	cm.DeleteServerState()
	if _, found := cm.GetServerState(); found {
		t.Fatal("expected server state to be gone after Delete")
	}
}

func TestStatsTrackHitsAndMisses(t *testing.T) {
	cm := newTestManager(t)
	cm.ResetStats()

	cm.GetAuthSession() // miss
	cm.SetAuthSession(NewAuthSession("sid", time.Hour))
	cm.GetAuthSession() // hit

	stats := cm.GetStats()
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Sets != 1 {
		t.Errorf("expected 1 set, got %d", stats.Sets)
	}

	if ratio := cm.GetHitRatio(); ratio != 50.0 {
		t.Errorf("expected hit ratio 50.0, got %v", ratio)
	}
}

func TestGetHitRatioWithNoActivity(t *testing.T) {
	cm := newTestManager(t)
	cm.ResetStats()

	if ratio := cm.GetHitRatio(); ratio != 0.0 {
		t.Errorf("expected hit ratio 0.0 with no activity, got %v", ratio)
	}
}

func TestClearRemovesItemsAndResetsStats(t *testing.T) {
	cm := newTestManager(t)
	cm.SetAuthSession(NewAuthSession("sid", time.Hour))
	cm.SetProperties("hash1", &qbittorrent.TorrentProperties{}, time.Minute)

	if cm.GetItemCount() == 0 {
		t.Fatal("expected items to be cached before Clear")
	}

	cm.Clear()

	if cm.GetItemCount() != 0 {
		t.Errorf("expected 0 items after Clear, got %d", cm.GetItemCount())
	}
	if stats := cm.GetStats(); stats.Sets != 0 || stats.Hits != 0 {
		t.Error("expected stats to be reset after Clear")
	}
}

func TestGetManagerReturnsGlobalInstance(t *testing.T) {
	cm := newTestManager(t)
	if got := GetManager(); got != cm {
		t.Error("expected GetManager to return the most recently Initialize'd instance")
	}
}
