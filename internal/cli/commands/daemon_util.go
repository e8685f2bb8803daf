package commands

import (
	"context"
	"io"
	"os"

	"snmpfs/internal/daemon"
	"snmpfs/internal/util"
)

// startDaemonBackground starts "snmpfs daemon start --foreground" detached
// and waits until it holds the instance lock. Progress goes to notify.
func startDaemonBackground(notify io.Writer) error {
	cfg := util.DaemonStartConfig{
		Notify:     notify,
		PollConfig: util.StartPollConfig(),
	}

	args := []string{"daemon", "start", "--foreground"}
	if configFile != "" {
		args = append(args, "--config", configFile)
	}
	if daemonNoCleanup {
		args = append(args, "--skip-cleanup")
	}
	return util.StartDaemon(context.Background(), cfg, daemon.IsDaemonRunning, args)
}

// stopDaemonAndWait signals the running daemon and waits for it to exit.
func stopDaemonAndWait() error {
	pid, err := daemon.GetPID()
	if err != nil {
		return err
	}
	if pid == os.Getpid() {
		return nil
	}
	return util.StopProcess(context.Background(), pid, stopTimeout, daemon.IsDaemonRunning)
}
