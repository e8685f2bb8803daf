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
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"snmpfs/internal/daemon"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") {
		// Dev build: include epoch and commit for troubleshooting
		return fmt.Sprintf("%s (%s, epoch: %s, commit: %s)", version, buildDate, date, commit)
	}
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

// configFile is the --config flag; empty means the default location.
var configFile string

var rootCmd = &cobra.Command{
	Use:   "snmpfs",
	Short: "Browse and edit an SNMP agent as a filesystem",
	Long: `Presents the object tree of a remote SNMP agent as a directory tree.

Directories are OID subtrees, files are object instances whose content is
the rendered value. The daemon exports the tree over NFS; the ls, stat,
cat, write and handle commands talk to the agent directly.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("snmpfs version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ~/.snmpfs/config.yaml)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// configPath returns the config file the command should use.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	return daemon.ConfigPath()
}

// loadConfig loads the config named by --config.
func loadConfig() (*daemon.Config, error) {
	cfg, err := daemon.LoadConfig(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
