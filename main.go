package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raainshe/ratemind/cmd"
	"github.com/raainshe/ratemind/internal/cache"
	"github.com/raainshe/ratemind/internal/config"
	"github.com/raainshe/ratemind/internal/core"
	"github.com/raainshe/ratemind/internal/logging"
	"github.com/raainshe/ratemind/internal/notify"
	"github.com/raainshe/ratemind/internal/persistence"
	"github.com/raainshe/ratemind/internal/qbittorrent"
	"github.com/raainshe/ratemind/internal/report"
	"github.com/raainshe/ratemind/internal/tui"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// AppServices holds all initialized services
type AppServices struct {
	ConfigManager  *config.Manager
	Logger         *logging.Logger
	Cache          *cache.CacheManager
	QBClient       *qbittorrent.Client
	TorrentService *core.TorrentService
	Store          *persistence.Store
	Notifier       *notify.Notifier
	Coordinator    *core.Coordinator
}

func (s *AppServices) Config() *config.Config {
	return s.ConfigManager.Current()
}

func main() {
	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n🛑 Shutting down gracefully...")
		cancel()
	}()

	// Initialize services
	services, err := initializeServices(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to initialize services: %v\n", err)
		os.Exit(1)
	}

	// Create root command
	rootCmd := createRootCommand(ctx, services)

	// Execute command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Command failed: %v\n", err)
		cleanup(services)
		os.Exit(1)
	}

	// Cleanup services
	cleanup(services)
}

// createRootCommand creates the main Cobra root command
func createRootCommand(ctx context.Context, services *AppServices) *cobra.Command {
	var configFile string
	var logLevel string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "ratemind",
		Short: "🎛️  ratemind - qBittorrent rate control supervisor",
		Long: `🎛️  ratemind - qBittorrent rate control supervisor

ratemind watches tracked torrents' announce cycles and continuously
shapes upload (and optionally download) speed to hit a target ratio
by the next tracker announce, forcing early reannounces when it's
profitable to do so.

Examples:
  ratemind                 # Launch the live status dashboard (default)
  ratemind daemon          # Run the control loop in the foreground
  ratemind rate-status     # One-shot snapshot of current decisions
  ratemind list            # List torrents known to qBittorrent
  ratemind add "magnet:..."  # Add a torrent`,
		Version: fmt.Sprintf("%s (built: %s, commit: %s)", version, buildTime, gitCommit),
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(ctx, services.Config(), services.TorrentService,
				services.Coordinator, services.QBClient)
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Handle global flags
			if configFile != "" {
				viper.SetConfigFile(configFile)
				if err := viper.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read config file: %w", err)
				}
			}

			// Set log level based on flags
			if verbose {
				services.Logger.SetLevel(logrus.DebugLevel)
			} else if logLevel != "" {
				level, err := logrus.ParseLevel(logLevel)
				if err != nil {
					return fmt.Errorf("invalid log level: %w", err)
				}
				services.Logger.SetLevel(level)
			} else {
				// Default: only show warnings and errors for CLI commands
				services.Logger.SetLevel(logrus.WarnLevel)
			}

			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error) - default: warn")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (shows all logs)")

	// Add all subcommands
	rootCmd.AddCommand(
		cmd.NewTUICommand(ctx, services.Config(), services.TorrentService, services.Coordinator, services.QBClient),
		cmd.NewListCommand(ctx, services.TorrentService),
		cmd.NewDownloadingCommand(ctx, services.TorrentService),
		cmd.NewAddCommand(ctx, services.TorrentService),
		cmd.NewDeleteCommand(ctx, services.TorrentService),
		cmd.NewRateStatusCommand(ctx, services.Coordinator),
		cmd.NewLogsCommand(ctx, services.Config()),
		cmd.NewVersionCommand(version, buildTime, gitCommit),
		cmd.NewDaemonCommand(ctx, services.Coordinator, services.Notifier),
		cmd.NewStatusCommand(),
		cmd.NewStopCommand(),
		cmd.NewRestartCommand(ctx, services.Coordinator, services.Notifier),
	)

	return rootCmd
}

// defaultConfigPath is used when RATEMIND_CONFIG isn't set.
const defaultConfigPath = "config.yaml"

// initializeServices initializes all application services
func initializeServices(ctx context.Context) (*AppServices, error) {
	configPath := os.Getenv("RATEMIND_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	configManager, err := config.NewManager(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := configManager.Current()

	// Temporarily override log level for quieter CLI initialization
	originalLogLevel := cfg.Logging.Level
	cfg.Logging.Level = "warn"

	logger, err := logging.Initialize(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	cfg.Logging.Level = originalLogLevel

	mainLogger := logging.GetLogger()

	cacheManager, err := cache.Initialize(&cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	var clientOpts []qbittorrent.ClientOption
	if cfg.QBittorrent.APIRateLimit > 0 {
		clientOpts = append(clientOpts, qbittorrent.WithAPIRateLimit(cfg.QBittorrent.APIRateLimit))
	}
	if cfg.Proxy.Enabled && cfg.Proxy.URL != "" {
		clientOpts = append(clientOpts, qbittorrent.WithProxy(cfg.Proxy.URL))
	}

	qbClient, err := qbittorrent.NewClient(cfg.QBittorrent.URL, cfg.QBittorrent.Username, cfg.QBittorrent.Password, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create qBittorrent client: %w", err)
	}

	if err := qbClient.Login(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to qBittorrent: %w", err)
	}
	mainLogger.Info("✅ Connected to qBittorrent successfully")

	store, err := persistence.Open(cfg.Persistence.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open persistence store: %w", err)
	}

	notifier, err := notify.New(cfg.Notify)
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier: %w", err)
	}

	var reporter *report.Generator
	if cfg.Report.Enabled {
		outDir := cfg.Report.OutputDir
		if outDir == "" {
			outDir = "reports"
		}
		reporter, err = report.NewGenerator(store, outDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create report generator: %w", err)
		}
	}

	torrentService := core.NewTorrentService(qbClient, cfg, cacheManager)
	coordinator := core.NewCoordinator(qbClient, torrentService, cacheManager, store, notifier, reporter, configManager.Current)

	if err := coordinator.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start rate control coordinator: %w", err)
	}
	mainLogger.Info("🎛️  Rate control coordinator started")

	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		coordinator.Metrics().Start(cfg.Metrics.Addr)
		mainLogger.WithField("addr", cfg.Metrics.Addr).Info("📈 Metrics endpoint enabled")
	}

	mainLogger.Info("✅ All services initialized successfully")

	return &AppServices{
		ConfigManager:  configManager,
		Logger:         logger,
		Cache:          cacheManager,
		QBClient:       qbClient,
		TorrentService: torrentService,
		Store:          store,
		Notifier:       notifier,
		Coordinator:    coordinator,
	}, nil
}

// cleanup gracefully shuts down all services
func cleanup(services *AppServices) {
	if services == nil {
		return
	}

	mainLogger := logging.GetLogger()
	mainLogger.Info("🧹 Cleaning up services...")

	if services.Coordinator != nil {
		if err := services.Coordinator.Metrics().Stop(); err != nil {
			mainLogger.WithError(err).Warn("Failed to stop metrics server")
		}
		if err := services.Coordinator.Stop(); err != nil {
			mainLogger.WithError(err).Error("Failed to stop rate control coordinator")
		} else {
			mainLogger.Info("✅ Rate control coordinator stopped")
		}
	}

	if services.Notifier != nil {
		if err := services.Notifier.Stop(); err != nil {
			mainLogger.WithError(err).Warn("Failed to stop notifier")
		}
	}

	if services.Store != nil {
		if err := services.Store.Close(); err != nil {
			mainLogger.WithError(err).Warn("Failed to close persistence store")
		}
	}

	if services.QBClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := services.QBClient.Logout(ctx); err != nil {
			mainLogger.WithError(err).Warn("Failed to logout from qBittorrent")
		} else {
			mainLogger.Info("✅ Logged out from qBittorrent")
		}
	}

	if services.Cache != nil {
		services.Cache.Shutdown()
		mainLogger.Info("✅ Cache manager shutdown")
	}

	mainLogger.Info("✅ Cleanup completed")
}
