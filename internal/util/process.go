package util

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// StartBackgroundProcess starts a detached background process.
// The process will continue running after the parent exits.
func StartBackgroundProcess(executable string, args []string) (*os.Process, error) {
	cmd := exec.Command(executable, args...)
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start process: %w", err)
	}
	return cmd.Process, nil
}

// StopProcess sends SIGTERM to pid and waits for isRunning to turn false,
// killing the process when it does not stop within gracefulTimeout.
func StopProcess(ctx context.Context, pid int, gracefulTimeout time.Duration, isRunning func() bool) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil && isRunning() {
		return fmt.Errorf("failed to signal PID %d: %w", pid, err)
	}

	cfg := PollConfig{Timeout: gracefulTimeout, Interval: 100 * time.Millisecond}
	if PollUntil(ctx, cfg, func() bool { return !isRunning() }) == nil {
		return nil
	}

	_ = proc.Signal(syscall.SIGKILL)
	if PollUntil(ctx, PollConfig{Timeout: time.Second}, func() bool { return !isRunning() }) != nil {
		return fmt.Errorf("failed to stop process (PID %d)", pid)
	}
	return nil
}

// IsProcessRunning checks if a process with the given PID is running.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, sending signal 0 checks if process exists
	return proc.Signal(syscall.Signal(0)) == nil
}
