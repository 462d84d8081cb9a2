package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/raainshe/ratemind/internal/core"
	"github.com/raainshe/ratemind/internal/logging"
	"github.com/raainshe/ratemind/internal/notify"
	"github.com/spf13/cobra"
)

const (
	pidFile = "ratemind.pid"
)

// NewDaemonCommand creates the daemon command that runs the rate
// control coordinator in the foreground, managed by a PID file so
// status/stop/restart can find it.
func NewDaemonCommand(ctx context.Context, coordinator *core.Coordinator, notifier *notify.Notifier) *cobra.Command {
	var daemonPidFile string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the rate control daemon",
		Long: `Run the rate control daemon that continuously shapes upload/download
speeds for tracked torrents.

The daemon will:
- Poll qBittorrent on a fixed tick and adjust upload/download limits
- Force early tracker reannounces when profitable
- Deliver Discord alerts for persistent precision clamps
- Handle graceful shutdown on SIGINT/SIGTERM
- Create a PID file for process management`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(ctx, coordinator, notifier, daemonPidFile)
		},
	}

	cmd.Flags().StringVarP(&daemonPidFile, "pid-file", "p", pidFile, "PID file location")

	return cmd
}

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		Long:  "Check if the ratemind daemon is running and show its status",
		RunE:  runStatus,
	}
}

// NewStopCommand creates the stop command
func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		Long:  "Stop the running ratemind daemon gracefully",
		RunE:  runStop,
	}
}

// NewRestartCommand creates the restart command
func NewRestartCommand(ctx context.Context, coordinator *core.Coordinator, notifier *notify.Notifier) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the daemon",
		Long:  "Stop the running daemon and start it again",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestart(ctx, coordinator, notifier)
		},
	}
}

func displayBanner() {
	fmt.Println(`
    ╔══════════════════════════════════════════════════════════════╗
    ║                                                                ║
    ║     ratemind — qBittorrent rate control daemon                ║
    ║                                                                ║
    ║     PID:  ` + fmt.Sprintf("%-6d", os.Getpid()) + `                                         ║
    ║     Time: ` + time.Now().Format("2006-01-02 15:04:05") + `                               ║
    ║                                                                ║
    ╚══════════════════════════════════════════════════════════════╝
`)
}

func runDaemon(ctx context.Context, coordinator *core.Coordinator, notifier *notify.Notifier, daemonPidFile string) error {
	if isDaemonRunning(daemonPidFile) {
		return fmt.Errorf("daemon is already running (PID file exists: %s)", daemonPidFile)
	}

	logger := logging.GetLogger()

	daemonCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := createPIDFile(daemonPidFile); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer removePIDFile(daemonPidFile)

	displayBanner()

	if err := notifier.Start(); err != nil {
		logger.WithError(err).Warn("Failed to start notifier, continuing without Discord alerts")
	}

	if err := coordinator.Start(daemonCtx); err != nil {
		return fmt.Errorf("failed to start rate control coordinator: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.WithField("pid", os.Getpid()).Info("Daemon started successfully")

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case <-daemonCtx.Done():
		logger.Info("Received shutdown context")
	}

	logger.Info("Shutting down daemon...")

	if err := coordinator.Stop(); err != nil {
		logger.WithError(err).Error("Error stopping coordinator")
	}
	if err := notifier.Stop(); err != nil {
		logger.WithError(err).Error("Error stopping notifier")
	}

	cancel()
	logger.Info("Daemon stopped successfully")
	return nil
}

// isDaemonRunning checks if the daemon is already running
func isDaemonRunning(pidFile string) bool {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return false
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// createPIDFile creates a PID file with the current process ID
func createPIDFile(pidFile string) error {
	pid := os.Getpid()
	data := fmt.Sprintf("%d\n", pid)
	return os.WriteFile(pidFile, []byte(data), 0644)
}

// removePIDFile removes the PID file
func removePIDFile(pidFile string) {
	os.Remove(pidFile)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if isDaemonRunning(pidFile) {
		data, _ := os.ReadFile(pidFile)
		pid := strings.TrimSpace(string(data))
		fmt.Printf("✅ Daemon is running (PID: %s)\n", pid)
		return nil
	}

	fmt.Println("❌ Daemon is not running")
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	if !isDaemonRunning(pidFile) {
		return fmt.Errorf("daemon is not running")
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return fmt.Errorf("invalid PID in file: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	err = process.Signal(syscall.SIGTERM)
	if err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	fmt.Printf("🔄 Sent SIGTERM to daemon (PID: %d)\n", pid)
	fmt.Println("Waiting for graceful shutdown...")

	for i := 0; i < 10; i++ {
		time.Sleep(1 * time.Second)
		err = process.Signal(syscall.Signal(0))
		if err != nil {
			removePIDFile(pidFile)
			fmt.Println("✅ Daemon stopped successfully")
			return nil
		}
	}

	fmt.Println("⚠️  Daemon not responding, sending SIGKILL...")
	err = process.Signal(syscall.SIGKILL)
	if err != nil {
		return fmt.Errorf("failed to send SIGKILL: %w", err)
	}

	removePIDFile(pidFile)
	fmt.Println("✅ Daemon force stopped")
	return nil
}

func runRestart(ctx context.Context, coordinator *core.Coordinator, notifier *notify.Notifier) error {
	fmt.Println("🔄 Restarting daemon...")

	if isDaemonRunning(pidFile) {
		tempCmd := &cobra.Command{}
		if err := runStop(tempCmd, []string{}); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
		time.Sleep(2 * time.Second)
	}

	return runDaemon(ctx, coordinator, notifier, pidFile)
}
