package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/raainshe/ratemind/internal/cli"
	"github.com/raainshe/ratemind/internal/config"
	"github.com/raainshe/ratemind/internal/core"
	"github.com/raainshe/ratemind/internal/qbittorrent"
	"github.com/raainshe/ratemind/internal/tui"
)

// NewTUICommand creates the TUI command
func NewTUICommand(ctx context.Context, cfg *config.Config, torrentService *core.TorrentService,
	coordinator *core.Coordinator, qbClient *qbittorrent.Client) *cobra.Command {

	return &cobra.Command{
		Use:   "tui",
		Short: "📊 Launch interactive dashboard",
		Long:  "Launch the interactive terminal dashboard for monitoring rate control decisions live",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(ctx, cfg, torrentService, coordinator, qbClient)
		},
	}
}

// NewListCommand creates the list command
func NewListCommand(ctx context.Context, torrentService *core.TorrentService) *cobra.Command {
	var category string
	var state string
	var seedingOnly bool
	var downloadingOnly bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "📋 List torrents",
		Long: `📋 List torrents with filtering and formatting options

This command displays all torrents with a beautiful table format including:
- Progress bars and completion status
- Download speed and ETA
- Torrent state (downloading, seeding, paused, error)
- Filtering by category, state, and activity
- JSON output for scripting

Examples:
  ratemind list                           # Show all torrents
  ratemind list --seeding-only            # Show only seeding torrents
  ratemind list --downloading             # Show only downloading torrents
  ratemind list --state downloading       # Show only downloading (alternative)
  ratemind list --json                    # JSON output for scripts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListCommand(ctx, torrentService, category, state, seedingOnly, downloadingOnly, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "filter by qBittorrent category")
	cmd.Flags().StringVarP(&state, "state", "s", "", "filter by state (downloading, seeding, paused, error)")
	cmd.Flags().BoolVar(&seedingOnly, "seeding-only", false, "show only seeding torrents")
	cmd.Flags().BoolVar(&downloadingOnly, "downloading", false, "show only downloading torrents")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output in JSON format")

	return cmd
}

// NewAddCommand creates the add command
func NewAddCommand(ctx context.Context, torrentService *core.TorrentService) *cobra.Command {
	var category string
	var path string

	cmd := &cobra.Command{
		Use:   "add <magnet-uri>",
		Short: "➕ Add torrent",
		Long: `➕ Add a new torrent from magnet URI

Once added, the torrent is picked up on the daemon's next tick and brought
under rate control if its tracker matches the configured keyword.

Examples:
  ratemind add "magnet:?xt=urn:btih:..."
  ratemind add "magnet:?xt=urn:btih:..." --category seeding
  ratemind add "magnet:?xt=urn:btih:..." --path /custom`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			magnetURI := args[0]
			return runAddCommand(ctx, torrentService, magnetURI, category, path)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "qBittorrent category to assign")
	cmd.Flags().StringVarP(&path, "path", "p", "", "custom save path")

	return cmd
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand(ctx context.Context, torrentService *core.TorrentService) *cobra.Command {
	var hash string
	var namePattern string
	var category string
	var deleteFiles bool
	var force bool

	cmd := &cobra.Command{
		Use:   "delete [flags]",
		Short: "🗑️  Delete torrents",
		Long: `🗑️  Delete torrents with optional file removal

Examples:
  ratemind delete --hash abc123...                 # Delete specific torrent
  ratemind delete --name "Ubuntu"                  # Delete torrents matching "Ubuntu"
  ratemind delete --category seeding                # Delete all torrents in category
  ratemind delete --hash abc123... --delete-files   # Delete torrent and its files
  ratemind delete --name "Ubuntu" --force           # Skip confirmation prompt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeleteCommand(ctx, torrentService, hash, namePattern, category, deleteFiles, force)
		},
	}

	cmd.Flags().StringVar(&hash, "hash", "", "specific torrent hash to delete")
	cmd.Flags().StringVar(&namePattern, "name", "", "delete torrents matching name pattern")
	cmd.Flags().StringVar(&category, "category", "", "delete all torrents in category")
	cmd.Flags().BoolVar(&deleteFiles, "delete-files", false, "also delete downloaded files")
	cmd.Flags().BoolVar(&force, "force", false, "skip confirmation prompt")

	return cmd
}

// NewRateStatusCommand creates the rate-control status command, distinct
// from the daemon process NewStatusCommand in daemon.go.
func NewRateStatusCommand(ctx context.Context, coordinator *core.Coordinator) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "rate-status",
		Short: "🎛️  Show rate control status",
		Long: `🎛️  Show the current rate control decision for every tracked torrent:
phase, upload/download limits, reannounce state, and cycle sync status.

Examples:
  ratemind rate-status          # Human-readable table
  ratemind rate-status --json   # JSON output for scripts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRateStatusCommand(coordinator, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output in JSON format")

	return cmd
}

// NewLogsCommand creates the logs command
func NewLogsCommand(ctx context.Context, cfg *config.Config) *cobra.Command {
	var tail int
	var follow bool
	var level string
	var component string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "📜 View logs",
		Long:  "View application logs with filtering options",
		RunE: func(cmd *cobra.Command, args []string) error {
			// TODO: Implement logs command
			fmt.Println("📜 Logs command - Coming soon!")
			fmt.Printf("Tail: %d, Follow: %v, Level: %s, Component: %s\n",
				tail, follow, level, component)
			return nil
		},
	}

	cmd.Flags().IntVarP(&tail, "tail", "n", 50, "number of recent entries to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow log output")
	cmd.Flags().StringVarP(&level, "level", "l", "", "filter by log level")
	cmd.Flags().StringVarP(&component, "component", "c", "", "filter by component")

	return cmd
}

// NewVersionCommand creates the version command
func NewVersionCommand(version, buildTime, gitCommit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "📋 Show version information",
		Long:  "Display version, build time, and git commit information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("🎛️  ratemind\n")
			fmt.Printf("Version: %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
		},
	}
}

// runListCommand implements the list command functionality
func runListCommand(ctx context.Context, torrentService *core.TorrentService,
	category, state string, seedingOnly, downloadingOnly, jsonOutput bool) error {

	if seedingOnly && downloadingOnly {
		return fmt.Errorf("cannot use both --seeding-only and --downloading flags together")
	}

	filter := &core.TorrentFilter{}

	if category != "" {
		filter.Category = category
	}

	if state != "" {
		stateLower := strings.ToLower(state)
		switch stateLower {
		case "downloading":
			filter.State = qbittorrent.StateDownloading
		case "seeding":
			filter.State = qbittorrent.StateUploading
		case "paused":
			filter.State = qbittorrent.StatePausedDL
		case "error":
			filter.State = qbittorrent.StateError
		default:
			filter.State = qbittorrent.TorrentState(state)
		}
	}

	if seedingOnly {
		filter.State = qbittorrent.StateUploading
	}

	if downloadingOnly {
		filter.States = []qbittorrent.TorrentState{
			qbittorrent.StateDownloading,
			qbittorrent.StateMetaDL,
			qbittorrent.StateStalledDL,
			qbittorrent.StateQueuedDL,
			qbittorrent.StateForcedDL,
			qbittorrent.StateCheckingDL,
			qbittorrent.StateAllocating,
		}
	}

	torrents, err := torrentService.GetTorrents(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to get torrents: %w", err)
	}

	if state != "" && strings.ToLower(state) == "paused" {
		var filteredTorrents []qbittorrent.Torrent
		for _, torrent := range torrents {
			if strings.Contains(strings.ToLower(string(torrent.State)), "paused") {
				filteredTorrents = append(filteredTorrents, torrent)
			}
		}
		torrents = filteredTorrents
	}

	torrentPtrs := make([]*qbittorrent.Torrent, len(torrents))
	for i := range torrents {
		torrentPtrs[i] = &torrents[i]
	}

	return cli.PrintTorrentTable(torrentPtrs, jsonOutput)
}

// NewDownloadingCommand creates a dedicated downloading torrents command
func NewDownloadingCommand(ctx context.Context, torrentService *core.TorrentService) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "downloading",
		Short: "⬇️  Show downloading torrents",
		Long: `⬇️  Show only torrents that are currently downloading

This command is a shortcut for 'ratemind list --downloading'.

Examples:
  ratemind downloading
  ratemind downloading --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListCommand(ctx, torrentService, "", "", false, true, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output in JSON format")

	return cmd
}

// runRateStatusCommand implements the rate-status command functionality
func runRateStatusCommand(coordinator *core.Coordinator, jsonOutput bool) error {
	snapshot := coordinator.Snapshot()

	if jsonOutput {
		jsonData, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status to JSON: %w", err)
		}
		fmt.Println(string(jsonData))
		return nil
	}

	if len(snapshot) == 0 {
		fmt.Println("🎛️  No torrents currently under rate control")
		return nil
	}

	fmt.Printf("🎛️  %s\n\n", cli.ColorHeader.Sprint("Rate Control Status"))

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"", "Name", "Phase", "Up", "DL", "Cycle", "Reason"})
	for _, s := range snapshot {
		syncIcon := "⏳"
		if s.CycleSynced {
			syncIcon = "✅"
		}
		table.Append([]string{
			syncIcon,
			s.Name,
			s.Phase,
			cli.FormatRateLimit(s.UpLimit),
			cli.FormatRateLimit(s.DLLimit),
			fmt.Sprintf("#%d", s.CycleIndex),
			s.UpReason,
		})
	}
	table.Render()

	fmt.Printf("\nGlobal precision adjustment: %.4f\n", coordinator.PrecisionAdjustment())
	return nil
}

// runAddCommand implements the add magnet command functionality
func runAddCommand(ctx context.Context, torrentService *core.TorrentService,
	magnetURI, category, customPath string) error {

	fmt.Printf("🔍 %s\n", cli.ColorHeader.Sprint("Validating magnet URI..."))

	magnetInfo, err := cli.ExtractMagnetInfo(magnetURI)
	if err != nil {
		cli.PrintAddResult(false, nil, category, customPath, err)
		return err
	}

	fmt.Printf("✅ Valid magnet URI found\n")
	fmt.Printf("   Name: %s\n", magnetInfo.DisplayName)
	fmt.Printf("   Hash: %s\n", magnetInfo.Hash)
	fmt.Printf("   Trackers: %d\n\n", len(magnetInfo.Trackers))

	if customPath != "" {
		fmt.Printf("📁 %s\n", cli.ColorHeader.Sprint("Validating custom path..."))

		if _, err := os.Stat(customPath); err != nil {
			pathErr := fmt.Errorf("custom path does not exist or is not accessible: %w", err)
			cli.PrintAddResult(false, magnetInfo, category, customPath, pathErr)
			return pathErr
		}

		fmt.Printf("✅ Custom path '%s' is accessible\n\n", customPath)
	}

	fmt.Printf("⬇️  %s\n", cli.ColorHeader.Sprint("Adding torrent to qBittorrent..."))

	addRequest := &core.AddTorrentRequest{
		MagnetURI: magnetURI,
		Category:  category,
		SavePath:  customPath,
	}

	if err := torrentService.AddMagnet(ctx, addRequest); err != nil {
		cli.PrintAddResult(false, magnetInfo, category, customPath, err)
		return fmt.Errorf("failed to add torrent: %w", err)
	}

	cli.PrintAddResult(true, magnetInfo, category, customPath, nil)
	fmt.Println("🎛️  Rate control picks up matching torrents on the next tick")
	return nil
}

// runDeleteCommand implements the delete torrent command functionality
func runDeleteCommand(ctx context.Context, torrentService *core.TorrentService,
	hash, namePattern, category string, deleteFiles, force bool) error {

	if hash == "" && namePattern == "" && category == "" {
		return fmt.Errorf("must specify one of: --hash, --name, or --category")
	}

	if (hash != "" && namePattern != "") || (hash != "" && category != "") || (namePattern != "" && category != "") {
		return fmt.Errorf("can only specify one of: --hash, --name, or --category")
	}

	fmt.Printf("🔍 %s\n", cli.ColorHeader.Sprint("Finding torrents to delete..."))

	var torrentsToDelete []qbittorrent.Torrent

	switch {
	case hash != "":
		torrent, err := torrentService.FindTorrentByHash(ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to find torrent: %w", err)
		}
		torrentsToDelete = []qbittorrent.Torrent{*torrent}
		fmt.Printf("✅ Found torrent: %s\n\n", torrent.Name)

	case namePattern != "":
		torrents, err := torrentService.FindTorrentsByPattern(ctx, namePattern)
		if err != nil {
			return fmt.Errorf("failed to search torrents: %w", err)
		}
		if len(torrents) == 0 {
			return fmt.Errorf("no torrents found matching pattern '%s'", namePattern)
		}
		torrentsToDelete = torrents
		fmt.Printf("✅ Found %d torrent(s) matching '%s'\n\n", len(torrents), namePattern)

	case category != "":
		filter := &core.TorrentFilter{Category: category}
		torrents, err := torrentService.GetTorrents(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to get torrents by category: %w", err)
		}
		if len(torrents) == 0 {
			return fmt.Errorf("no torrents found in category '%s'", category)
		}
		torrentsToDelete = torrents
		fmt.Printf("✅ Found %d torrent(s) in category '%s'\n\n", len(torrents), category)
	}

	var confirmed bool
	if force {
		fmt.Printf("⚡ %s\n\n", cli.ColorDownloading.Sprint("Force mode enabled - skipping confirmation"))
		confirmed = true
	} else {
		torrentPtrs := make([]*qbittorrent.Torrent, len(torrentsToDelete))
		for i := range torrentsToDelete {
			torrentPtrs[i] = &torrentsToDelete[i]
		}
		confirmed = cli.PrintDeleteConfirmation(torrentPtrs, deleteFiles)
	}

	if !confirmed {
		fmt.Println("❌ Deletion cancelled by user")
		return nil
	}

	fmt.Printf("🗑️  %s\n", cli.ColorHeader.Sprint("Deleting torrents..."))

	hashes := make([]string, len(torrentsToDelete))
	for i, torrent := range torrentsToDelete {
		hashes[i] = torrent.Hash
	}

	if err := torrentService.DeleteTorrents(ctx, hashes, deleteFiles); err != nil {
		failed := make(map[string]error)
		for _, h := range hashes {
			failed[h] = err
		}
		cli.PrintDeleteResult([]string{}, failed, deleteFiles)
		return fmt.Errorf("failed to delete torrents: %w", err)
	}

	cli.PrintDeleteResult(hashes, map[string]error{}, deleteFiles)
	return nil
}
