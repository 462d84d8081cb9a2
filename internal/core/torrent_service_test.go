package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/raainshe/ratemind/internal/qbittorrent"
)

// newFakeQBittorrent starts an httptest server that plays along with
// Client's auth-then-call flow (app/version for IsAuthenticated,
// auth/login for Login) and serves the given torrent list from
// torrents/info. Other mutating endpoints are recorded in calls.
func newFakeQBittorrent(t *testing.T, torrents []qbittorrent.Torrent) (*httptest.Server, *[]string) {
	t.Helper()
	var calls []string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/app/version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("v4.6.0"))
	})
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(torrents)
	})
	mux.HandleFunc("/api/v2/torrents/add", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "add")
		w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/torrents/delete", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "delete")
		w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/torrents/pause", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "pause")
		w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/torrents/resume", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "resume")
		w.Write([]byte("Ok."))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &calls
}

func newTestService(t *testing.T, torrents []qbittorrent.Torrent) *TorrentService {
	t.Helper()
	server, _ := newFakeQBittorrent(t, torrents)

	client, err := qbittorrent.NewClient(server.URL, "admin", "adminadmin")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	return NewTorrentService(client, nil, nil)
}

func sampleTorrents() []qbittorrent.Torrent {
	return []qbittorrent.Torrent{
		{Hash: "hash1", Name: "Alpha Linux ISO", Category: "isos", State: qbittorrent.StateDownloading, Progress: 0.4, Dlspeed: 100, Size: 1000},
		{Hash: "hash2", Name: "Beta Archive", Category: "isos", State: qbittorrent.StateUploading, Progress: 1.0, Upspeed: 50, Size: 2000},
		{Hash: "hash3", Name: "Gamma Docs", Category: "docs", State: qbittorrent.StatePausedUP, Progress: 1.0, Size: 500},
	}
}

func TestGetTorrentsNoFilter(t *testing.T) {
	svc := newTestService(t, sampleTorrents())
	torrents, err := svc.GetTorrents(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetTorrents returned error: %v", err)
	}
	if len(torrents) != 3 {
		t.Fatalf("expected 3 torrents, got %d", len(torrents))
	}
}

func TestGetTorrentsByCategory(t *testing.T) {
	svc := newTestService(t, sampleTorrents())
	torrents, err := svc.GetTorrentsByCategory(context.Background(), "isos")
	if err != nil {
		t.Fatalf("GetTorrentsByCategory returned error: %v", err)
	}
	if len(torrents) != 2 {
		t.Fatalf("expected 2 torrents in category 'isos', got %d", len(torrents))
	}

	if _, err := svc.GetTorrentsByCategory(context.Background(), ""); err == nil {
		t.Error("expected error for empty category")
	}
}

func TestGetSeedingAndActiveTorrents(t *testing.T) {
	svc := newTestService(t, sampleTorrents())

	seeding, err := svc.GetSeedingTorrents(context.Background())
	if err != nil {
		t.Fatalf("GetSeedingTorrents returned error: %v", err)
	}
	if len(seeding) != 1 || seeding[0].Hash != "hash2" {
		t.Fatalf("expected exactly hash2 to be seeding, got %+v", seeding)
	}

	active, err := svc.GetActiveTorrents(context.Background())
	if err != nil {
		t.Fatalf("GetActiveTorrents returned error: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active torrents, got %d", len(active))
	}
}

func TestSearchTorrents(t *testing.T) {
	svc := newTestService(t, sampleTorrents())

	found, err := svc.SearchTorrents(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("SearchTorrents returned error: %v", err)
	}
	if len(found) != 1 || found[0].Hash != "hash1" {
		t.Fatalf("expected exactly hash1 to match 'alpha', got %+v", found)
	}

	if _, err := svc.SearchTorrents(context.Background(), ""); err == nil {
		t.Error("expected error for empty search pattern")
	}
}

func TestFindTorrentByHash(t *testing.T) {
	svc := newTestService(t, sampleTorrents())

	torrent, err := svc.FindTorrentByHash(context.Background(), "HASH2")
	if err != nil {
		t.Fatalf("FindTorrentByHash returned error: %v", err)
	}
	if torrent.Name != "Beta Archive" {
		t.Errorf("expected to find 'Beta Archive', got %q", torrent.Name)
	}

	if _, err := svc.FindTorrentByHash(context.Background(), "nonexistent"); err == nil {
		t.Error("expected error for unknown hash")
	}
	if _, err := svc.FindTorrentByHash(context.Background(), ""); err == nil {
		t.Error("expected error for empty hash")
	}
}

func TestFindTorrentsByPattern(t *testing.T) {
	svc := newTestService(t, sampleTorrents())

	matches, err := svc.FindTorrentsByPattern(context.Background(), "a")
	if err != nil {
		t.Fatalf("FindTorrentsByPattern returned error: %v", err)
	}
	if len(matches) == 0 {
		t.Error("expected at least one match for common substring 'a'")
	}
}

func TestGetTorrentStats(t *testing.T) {
	svc := newTestService(t, sampleTorrents())

	stats, err := svc.GetTorrentStats(context.Background())
	if err != nil {
		t.Fatalf("GetTorrentStats returned error: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("expected total=3, got %d", stats.Total)
	}
	if stats.Downloading != 1 {
		t.Errorf("expected downloading=1, got %d", stats.Downloading)
	}
	if stats.Seeding != 1 {
		t.Errorf("expected seeding=1, got %d", stats.Seeding)
	}
}

func TestDeleteTorrents(t *testing.T) {
	svc := newTestService(t, sampleTorrents())

	if err := svc.DeleteTorrents(context.Background(), []string{"hash1"}, false); err != nil {
		t.Fatalf("DeleteTorrents returned error: %v", err)
	}
	if err := svc.DeleteTorrents(context.Background(), nil, false); err == nil {
		t.Error("expected error for empty hash list")
	}
}

func TestPauseStopResumeTorrents(t *testing.T) {
	svc := newTestService(t, sampleTorrents())

	if err := svc.PauseTorrents(context.Background(), []string{"hash1"}); err != nil {
		t.Fatalf("PauseTorrents returned error: %v", err)
	}
	if err := svc.StopTorrents(context.Background(), []string{"hash1"}); err != nil {
		t.Fatalf("StopTorrents returned error: %v", err)
	}
	if err := svc.ResumeTorrents(context.Background(), []string{"hash1"}); err != nil {
		t.Fatalf("ResumeTorrents returned error: %v", err)
	}

	if err := svc.PauseTorrents(context.Background(), nil); err == nil {
		t.Error("expected error for empty hash list on PauseTorrents")
	}
}

func TestAddMagnetValidation(t *testing.T) {
	svc := newTestService(t, sampleTorrents())

	if _, err := svc.AddMagnet(context.Background(), nil); err == nil {
		t.Error("expected error for nil request")
	}

	_, err := svc.AddMagnet(context.Background(), &AddTorrentRequest{MagnetURI: "not-a-magnet"})
	if err == nil {
		t.Error("expected error for invalid magnet URI")
	}
}

func TestExtractHashFromMagnet(t *testing.T) {
	svc := newTestService(t, nil)

	hash := strings.Repeat("a", 40)
	got, err := svc.extractHashFromMagnet("magnet:?xt=urn:btih:" + hash + "&dn=test")
	if err != nil {
		t.Fatalf("extractHashFromMagnet returned error: %v", err)
	}
	if got != hash {
		t.Errorf("got hash %q, want %q", got, hash)
	}

	if _, err := svc.extractHashFromMagnet("magnet:?dn=test"); err == nil {
		t.Error("expected error for magnet URI missing xt parameter")
	}
	if _, err := svc.extractHashFromMagnet("not a url with spaces %zz"); err == nil {
		t.Error("expected error for unparseable magnet URI")
	}
}

func TestApplyFilterSortingAndLimit(t *testing.T) {
	svc := newTestService(t, sampleTorrents())

	filter := &TorrentFilter{SortBy: SortByName, Limit: 2}
	torrents, err := svc.GetTorrents(context.Background(), filter)
	if err != nil {
		t.Fatalf("GetTorrents returned error: %v", err)
	}
	if len(torrents) != 2 {
		t.Fatalf("expected limit to cap results at 2, got %d", len(torrents))
	}
	if torrents[0].Name != "Alpha Linux ISO" {
		t.Errorf("expected sorted-by-name first result 'Alpha Linux ISO', got %q", torrents[0].Name)
	}
}
