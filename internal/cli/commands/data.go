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
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"snmpfs/internal/common"
	"snmpfs/internal/daemon"
	"snmpfs/internal/oid"
	"snmpfs/internal/vfs"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory of the agent tree",
	Long: `Lists a directory straight from the agent, without the daemon.

Paths are relative to export.root and use schema labels or arc numbers:

  snmpfs ls system
  snmpfs ls -l interfaces/ifTable/1/2`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show the attributes of an object",
	Args:  cobra.ExactArgs(1),
	RunE:  runStat,
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Print the value of an object instance",
	Args:  cobra.ExactArgs(1),
	RunE:  runCat,
}

var writeCmd = &cobra.Command{
	Use:   "write <path> [value]",
	Short: "Set the value of an object instance",
	Long: `Sets an object instance. The value is parsed as the object's type,
as if written to the file. Without a value argument it is read from stdin.

  snmpfs write system/sysName/0 core-1
  echo 2 | snmpfs write interfaces/ifTable/1/7/3`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runWrite,
}

var (
	lsLong  bool
	lsChunk int
)

func init() {
	lsCmd.Flags().BoolVarP(&lsLong, "long", "l", false, "Show attributes")
	lsCmd.Flags().IntVar(&lsChunk, "chunk", 0, "Entries per listing call (default: readdir_chunk)")
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(writeCmd)
}

// withFS opens the configured agent and runs fn on it.
func withFS(fn func(cfg *daemon.Config, fs *vfs.FS) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fs, pool, err := daemon.OpenFS(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(cfg, fs)
}

func runLs(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	return withFS(func(cfg *daemon.Config, fs *vfs.FS) error {
		h, err := fs.LookupPath(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer tw.Flush()

		if !h.Kind.IsDir() {
			attrs, err := fs.GetAttr(h)
			if err != nil {
				return err
			}
			printEntry(tw, common.BaseName(path), attrs)
			return nil
		}

		chunk := lsChunk
		if chunk == 0 {
			chunk = cfg.ReaddirChunk
		}
		var cookie oid.Cookie
		for {
			res, err := fs.ReadDir(h, cookie, chunk, lsLong)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			for _, e := range res.Entries {
				if e.AttrErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", e.Name, e.AttrErr)
					continue
				}
				printEntry(tw, e.Name, e.Attrs)
			}
			if res.EOF {
				return nil
			}
			cookie = res.Cookie
		}
	})
}

// printEntry writes one listing line; attrs is nil for a short listing.
func printEntry(w io.Writer, name string, attrs *vfs.Attrs) {
	if attrs == nil {
		fmt.Fprintln(w, name)
		return
	}
	label := attrs.Label
	if label == "" {
		label = "-"
	}
	fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", attrs.Mode, attrs.Size, label, name)
}

func runStat(cmd *cobra.Command, args []string) error {
	return withFS(func(cfg *daemon.Config, fs *vfs.FS) error {
		h, err := fs.LookupPath(args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		attrs, err := fs.GetAttr(h)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "OID: %s\n", h.Path)
		fmt.Fprintf(out, "Kind: %s\n", h.Kind)
		if attrs.Label != "" {
			fmt.Fprintf(out, "Label: %s\n", attrs.Label)
		}
		fmt.Fprintf(out, "Mode: %s\n", attrs.Mode)
		fmt.Fprintf(out, "Size: %d\n", attrs.Size)
		fmt.Fprintf(out, "Access: %s\n", attrs.Access)
		fmt.Fprintf(out, "File ID: %d\n", attrs.FileID)
		return nil
	})
}

func runCat(cmd *cobra.Command, args []string) error {
	return withFS(func(cfg *daemon.Config, fs *vfs.FS) error {
		h, err := fs.LookupPath(args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		data, err := fs.ReadValue(h)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	})
}

func runWrite(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) == 2 {
		text = args[1]
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		text = string(data)
	}
	return withFS(func(cfg *daemon.Config, fs *vfs.FS) error {
		h, err := fs.LookupPath(args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if err := fs.WriteValue(h, text); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		return nil
	})
}
