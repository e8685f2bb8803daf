package daemon

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"snmpfs/internal/util"
)

// CleanupResult contains the result of a cleanup operation
type CleanupResult struct {
	StaleMounts    []string // Mount points that were unmounted
	CleanedPidFile bool     // Whether PID file was cleaned
	Errors         []error  // Any errors encountered
}

// Cleanup removes what a crashed daemon left behind: the NFS mount at
// mountPoint and the PID file. It does nothing while a daemon runs.
func Cleanup(mountPoint string) *CleanupResult {
	result := &CleanupResult{}
	if IsDaemonRunning() {
		return result
	}
	if mountPoint != "" && IsMounted(mountPoint) {
		if err := Unmount(mountPoint); err != nil {
			result.Errors = append(result.Errors, err)
		} else {
			result.StaleMounts = append(result.StaleMounts, mountPoint)
		}
	}
	result.CleanedPidFile = cleanupStalePidFile()
	return result
}

// cleanupStalePidFile removes the PID file if its process is gone.
func cleanupStalePidFile() bool {
	pid, err := GetPID()
	if err != nil {
		if _, statErr := os.Stat(PidPath()); statErr == nil {
			// Unreadable content is as stale as a dead PID.
			os.Remove(PidPath())
			return true
		}
		return false
	}
	if util.IsProcessRunning(pid) {
		return false
	}
	os.Remove(PidPath())
	return true
}

// 3s is enough for normal unmounts; force unmount always succeeds quickly.
const unmountTimeout = 3 * time.Second

// Unmount unmounts mountPoint, escalating to a forced unmount. A stale NFS
// mount whose server is gone only yields to the forced one.
func Unmount(mountPoint string) error {
	if !IsMounted(mountPoint) {
		log.Debugf("Unmount: %s is not mounted, nothing to do", mountPoint)
		return nil
	}

	attempts := [][]string{{"umount", mountPoint}}
	if runtime.GOOS == "darwin" {
		attempts = append([][]string{{"diskutil", "unmount", mountPoint}}, attempts...)
		attempts = append(attempts, []string{"umount", "-f", mountPoint})
	} else {
		attempts = append(attempts, []string{"umount", "-f", "-l", mountPoint})
	}

	var lastErr error
	for _, args := range attempts {
		ctx, cancel := context.WithTimeout(context.Background(), unmountTimeout)
		output, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
		cancel()
		if err == nil {
			log.Infof("Unmount: %s succeeded for %s", strings.Join(args[:len(args)-1], " "), mountPoint)
			return nil
		}
		log.Debugf("Unmount: %s failed: %v, output: %s", args[0], err, string(output))
		lastErr = err
	}
	return fmt.Errorf("all unmount attempts failed for %s: %w", mountPoint, lastErr)
}

// IsMounted checks if a path is a mount point by checking the mount table
func IsMounted(mountPoint string) bool {
	output, err := exec.Command("mount").Output()
	if err != nil || len(output) == 0 {
		return false
	}

	// On macOS /tmp is /private/tmp in the mount table.
	realPath, err := filepath.EvalSymlinks(mountPoint)
	if err != nil {
		realPath = mountPoint
	}
	return containsMount(string(output), realPath)
}

// containsMount checks if a mount point is in the mount output.
// Lines look like "host:/ on /mount/point (nfs, ...)" on macOS and
// "host:/ on /mount/point type nfs (...)" on Linux.
func containsMount(mountOutput, mountPoint string) bool {
	for _, line := range bytes.Split([]byte(mountOutput), []byte("\n")) {
		if bytes.Contains(line, []byte(" on "+mountPoint+" ")) ||
			bytes.HasSuffix(line, []byte(" on "+mountPoint)) {
			return true
		}
	}
	return false
}

// FormatCleanupResult formats a cleanup result for display
func FormatCleanupResult(result *CleanupResult) string {
	var parts []string

	if len(result.StaleMounts) > 0 {
		parts = append(parts, fmt.Sprintf("Unmounted %d stale mount(s):", len(result.StaleMounts)))
		for _, m := range result.StaleMounts {
			parts = append(parts, fmt.Sprintf("  - %s", m))
		}
	}

	if result.CleanedPidFile {
		parts = append(parts, "Cleaned up stale PID file")
	}

	if len(result.Errors) > 0 {
		parts = append(parts, fmt.Sprintf("Encountered %d error(s):", len(result.Errors)))
		for _, e := range result.Errors {
			parts = append(parts, fmt.Sprintf("  - %s", e.Error()))
		}
	}

	if len(parts) == 0 {
		return "No cleanup needed"
	}
	return strings.Join(parts, "\n")
}
