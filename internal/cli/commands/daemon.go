package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"snmpfs/internal/daemon"
)

// stopTimeout is how long a daemon gets to exit after SIGTERM.
const stopTimeout = 10 * time.Second

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Daemon management commands",
	Long:  `Commands for controlling the snmpfs daemon that serves the agent over NFS.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon",
	Long: `Starts the snmpfs daemon in the background.

The daemon loads the MIB schema, opens sessions to the agent and serves
the export over NFS on export.listen. When export.mount_point is set the
export is also mounted there.`,
	Args: cobra.NoArgs,
	RunE: runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	Long:  `Stops the running snmpfs daemon, unmounting the export first when it was mounted.`,
	Args:  cobra.NoArgs,
	RunE:  runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStatus,
}

var daemonConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure daemon settings",
	Long: `Configure persistent daemon settings.

Settings are stored in the config file and take effect on next daemon start.

Examples:
  # Enable trace logging
  snmpfs daemon config --logging trace

  # Disable logging
  snmpfs daemon config --logging off

  # Show current configuration
  snmpfs daemon config`,
	Args: cobra.NoArgs,
	RunE: runDaemonConfig,
}

var (
	daemonForeground bool
	daemonRestart    bool
	daemonStderr     bool
	daemonNoCleanup  bool
	configLogLevel   string
)

func init() {
	daemonStartCmd.Flags().BoolVarP(&daemonForeground, "foreground", "f", false, "Run in foreground")
	daemonStartCmd.Flags().BoolVar(&daemonRestart, "restart", false, "Restart daemon if already running (no confirmation)")
	daemonStartCmd.Flags().BoolVar(&daemonStderr, "stderr", false, "Log to stderr instead of the log file (foreground only)")
	daemonStartCmd.Flags().BoolVar(&daemonNoCleanup, "skip-cleanup", false, "Keep a mount already present at the mount point")
	daemonConfigCmd.Flags().StringVar(&configLogLevel, "logging", "", "Log level: trace, debug, info, warn, error, off")
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonConfigCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Validate before forking so config errors reach the terminal.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if daemon.IsDaemonRunning() {
		pid, _ := daemon.GetPID()
		if !daemonRestart {
			fmt.Fprintf(out, "Daemon already running (PID %d)\n", pid)
			fmt.Fprintln(out, "Use --restart to restart the daemon")
			return nil
		}
		fmt.Fprintf(out, "Daemon already running (PID %d), restarting...\n", pid)
		if err := stopDaemonAndWait(); err != nil {
			return fmt.Errorf("failed to stop daemon for restart: %w", err)
		}
	}

	if daemonForeground {
		d := daemon.New(cfg)
		if daemonStderr {
			d.LogOutput = os.Stderr
		}
		d.SkipCleanup = daemonNoCleanup
		return d.Run()
	}

	if err := startDaemonBackground(out); err != nil {
		return fmt.Errorf("failed to start daemon: %w (see %s)", err, cfg.LogFile)
	}
	pid, _ := daemon.GetPID()
	fmt.Fprintf(out, "Daemon started (PID %d), serving on %s\n", pid, cfg.Export.Listen)
	return nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	if !daemon.IsDaemonRunning() {
		fmt.Fprintln(cmd.OutOrStdout(), "Daemon not running")
		// Still clean up what a crashed daemon may have left
		if cfg, err := loadConfig(); err == nil {
			if res := daemon.Cleanup(cfg.Export.MountPoint); len(res.StaleMounts) > 0 || res.CleanedPidFile || len(res.Errors) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), daemon.FormatCleanupResult(res))
			}
		}
		return nil
	}
	if err := stopDaemonAndWait(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if daemon.IsDaemonRunning() {
		pid, _ := daemon.GetPID()
		fmt.Fprintf(out, "Daemon: running (PID %d)\n", pid)
	} else {
		fmt.Fprintln(out, "Daemon: not running")
	}
	fmt.Fprintf(out, "Agent: %s:%d (v%s)\n", cfg.Agent.Address, cfg.Agent.Port, cfg.Agent.Version)
	root := cfg.Export.Root
	if root == "" {
		root = "(whole tree)"
	}
	fmt.Fprintf(out, "Export: %s on %s (%s)\n", root, cfg.Export.Listen, daemon.NetFSType())
	if cfg.Export.MountPoint != "" {
		fmt.Fprintf(out, "Mount point: %s\n", cfg.Export.MountPoint)
	}
	fmt.Fprintf(out, "Log level: %s\n", cfg.LogLevel)
	fmt.Fprintf(out, "Log file: %s\n", cfg.LogFile)
	return nil
}

func runDaemonConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if configLogLevel == "" {
		fmt.Fprintln(out, "Current daemon configuration:")
		fmt.Fprintf(out, "  Config file: %s\n", configPath())
		fmt.Fprintf(out, "  Log level: %s\n", cfg.LogLevel)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "To change settings:")
		fmt.Fprintln(out, "  snmpfs daemon config --logging <level>")
		return nil
	}

	if _, err := daemon.ParseLogLevel(configLogLevel); err != nil {
		return err
	}
	cfg.LogLevel = configLogLevel
	if err := daemon.SaveConfig(configPath(), cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(out, "Log level set to: %s\n", cfg.LogLevel)
	if daemon.IsDaemonRunning() {
		fmt.Fprintln(out, "Restart the daemon for the new log level to take effect:")
		fmt.Fprintln(out, "  snmpfs daemon start --restart")
	}
	return nil
}
