package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/raainshe/ratemind/internal/persistence"
)

func newTestGenerator(t *testing.T) (*Generator, string) {
	t.Helper()
	dir := t.TempDir()

	store, err := persistence.Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("persistence.Open returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	outDir := filepath.Join(dir, "reports")
	g, err := NewGenerator(store, outDir)
	if err != nil {
		t.Fatalf("NewGenerator returned error: %v", err)
	}
	return g, outDir
}

func TestGenerateSkipsTorrentsWithNoCycleHistory(t *testing.T) {
	g, outDir := newTestGenerator(t)

	if err := g.Generate(TorrentSummary{Hash: "nosuchhash", Name: "Unseen Torrent", Phase: "observing"}); err != nil {
		t.Fatalf("Generate returned error for empty history: %v", err)
	}

	if _, err := os.Stat(filepath.Join(outDir, "nosuchhash.png")); !os.IsNotExist(err) {
		t.Error("expected no PNG to be written when there is no cycle history")
	}
	if _, err := os.Stat(filepath.Join(outDir, "nosuchhash.pdf")); !os.IsNotExist(err) {
		t.Error("expected no PDF to be written when there is no cycle history")
	}
}

func TestNewGeneratorCreatesOutputDir(t *testing.T) {
	_, outDir := newTestGenerator(t)

	info, err := os.Stat(outDir)
	if err != nil {
		t.Fatalf("expected output dir to exist, stat returned: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected output path to be a directory")
	}
}

func TestMinInt(t *testing.T) {
	if got := minInt(3, 5); got != 3 {
		t.Errorf("minInt(3, 5) = %d, want 3", got)
	}
	if got := minInt(5, 3); got != 3 {
		t.Errorf("minInt(5, 3) = %d, want 3", got)
	}
	if got := minInt(4, 4); got != 4 {
		t.Errorf("minInt(4, 4) = %d, want 4", got)
	}
}
