// Copyright 2024 SnmpFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"snmpfs/internal/daemon"
)

var mountCmd = &cobra.Command{
	Use:   "mount <mount-point>",
	Short: "Mount the running daemon's export",
	Long: `Mounts the export served by the running daemon at the given directory.

The directory must exist and be empty. Usually needs root.

Examples:
  snmpfs mount /mnt/router
  snmpfs unmount /mnt/router`,
	Args: cobra.ExactArgs(1),
	RunE: runMount,
}

func init() {
	rootCmd.AddCommand(mountCmd)
}

func runMount(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !daemon.IsDaemonRunning() {
		return fmt.Errorf("daemon not running (start it with 'snmpfs daemon start')")
	}

	mountPoint, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve mount point: %w", err)
	}
	if err := checkEmptyDir(mountPoint); err != nil {
		return err
	}

	host, portStr, err := net.SplitHostPort(cfg.Export.Listen)
	if err != nil {
		return err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("export.listen port %q: %w", portStr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	if err := daemon.NFSMount(host, port, mountPoint); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Mounted %s:%d at %s\n", host, port, mountPoint)
	return nil
}

// checkEmptyDir fails unless path is an existing empty directory.
func checkEmptyDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("mount point: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("mount point is not a directory: %s", path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("failed to read mount point: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("mount point is not empty: %s", path)
	}
	return nil
}
