package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/raainshe/ratemind/internal/config"
	"github.com/raainshe/ratemind/internal/core"
	"github.com/raainshe/ratemind/internal/qbittorrent"
)

// Run starts the Bubbletea dashboard, showing a live view of the
// coordinator's rate control decisions. The coordinator must already
// be running (started by the caller) — the dashboard only reads its
// snapshot, it never drives the control loop itself.
func Run(ctx context.Context, cfg *config.Config, torrentService *core.TorrentService,
	coordinator *core.Coordinator, qbClient *qbittorrent.Client) error {

	model := NewAppModel(ctx, cfg, torrentService, coordinator, qbClient)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard exited with error: %w", err)
	}

	return nil
}
