package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/raainshe/ratemind/internal/cli"
	"github.com/raainshe/ratemind/internal/config"
	"github.com/raainshe/ratemind/internal/core"
	"github.com/raainshe/ratemind/internal/qbittorrent"
	"github.com/raainshe/ratemind/internal/tui/styles"
)

// tickMsg drives the periodic refresh of the dashboard.
type tickMsg time.Time

// refreshInterval controls how often the dashboard re-reads the
// coordinator's snapshot. It is intentionally decoupled from the
// control loop's own tick interval — the dashboard is a read-only
// window onto whatever state the coordinator last computed.
const refreshInterval = time.Second

// AppModel is the Bubbletea model for the live rate-control dashboard.
// It never talks to qBittorrent directly: everything it shows comes
// from the coordinator's own snapshot, so the dashboard can never
// apply a limit the control loop didn't already decide on.
type AppModel struct {
	ctx         context.Context
	config      *config.Config
	coordinator *core.Coordinator

	width  int
	height int

	snapshot []core.Status
	lastErr  error
	quitting bool
}

// NewAppModel creates a new dashboard model.
func NewAppModel(ctx context.Context, cfg *config.Config, torrentService *core.TorrentService,
	coordinator *core.Coordinator, qbClient *qbittorrent.Client) *AppModel {

	return &AppModel{
		ctx:         ctx,
		config:      cfg,
		coordinator: coordinator,
	}
}

func (m *AppModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.snapshot = m.coordinator.Snapshot()
		return m, tick()
	}

	return m, nil
}

func (m *AppModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := styles.HeaderStyle.Render(fmt.Sprintf(" ratemind — %d torrents under rate control ", len(m.snapshot)))
	b.WriteString(header + "\n\n")

	if len(m.snapshot) == 0 {
		b.WriteString(styles.HelpStyle.Render("No torrents currently matched for rate control.\n"))
	}

	for _, s := range m.snapshot {
		syncMark := "waiting"
		syncStyle := lipgloss.NewStyle().Foreground(styles.Warning)
		if s.CycleSynced {
			syncMark = "synced"
			syncStyle = lipgloss.NewStyle().Foreground(styles.Success)
		}

		row := fmt.Sprintf("%-40s  phase=%-8s  up=%-10s  dl=%-10s  cycle=#%-3d  %s",
			truncate(s.Name, 40), s.Phase, cli.FormatRateLimit(s.UpLimit), cli.FormatRateLimit(s.DLLimit), s.CycleIndex,
			syncStyle.Render(syncMark))

		b.WriteString(styles.TableRowStyle.Render(row) + "\n")
		b.WriteString(styles.HelpStyle.Render("   "+s.UpReason) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.StatusBarStyle.Render(fmt.Sprintf(" global precision adjustment: %.4f ", m.coordinator.PrecisionAdjustment())))
	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("press q to quit"))

	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
