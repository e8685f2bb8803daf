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
	"os"

	"github.com/spf13/cobra"

	"snmpfs/internal/daemon"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default configuration",
	Long: `Creates ~/.snmpfs (or $SNMPFS_CONFIG_DIR) with a default config.yaml.

An existing config.yaml is never overwritten. Edit the agent and export
sections, then start the daemon with 'snmpfs daemon start'.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	_, statErr := os.Stat(daemon.ConfigPath())

	path, err := daemon.InitConfigDir()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statErr == nil {
		fmt.Fprintf(out, "Reinitialized existing configuration in %s\n", daemon.ConfigDir())
		fmt.Fprintf(out, "  config.yaml already exists (not modified)\n")
		return nil
	}
	fmt.Fprintf(out, "Initialized configuration in %s\n", daemon.ConfigDir())
	fmt.Fprintf(out, "  created %s\n", path)
	return nil
}
