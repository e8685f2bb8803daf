package commands

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"snmpfs/internal/daemon"
	"snmpfs/internal/digest"
	"snmpfs/internal/vfs"
)

var handleCmd = &cobra.Command{
	Use:   "handle <path> | --decode <hex>",
	Short: "Show the NFS file handle of an object",
	Long: `Prints the file handle the daemon hands out for a path, or with
--decode, the object a handle refers to. Handles only depend on
export.root, so they stay valid across daemon restarts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHandle,
}

var handleDecode string

func init() {
	handleCmd.Flags().StringVar(&handleDecode, "decode", "", "Decode a hex handle instead")
	rootCmd.AddCommand(handleCmd)
}

func runHandle(cmd *cobra.Command, args []string) error {
	if handleDecode != "" {
		return decodeHandle(cmd, handleDecode)
	}
	if len(args) != 1 {
		return fmt.Errorf("path required (or use --decode)")
	}
	return withFS(func(cfg *daemon.Config, fs *vfs.FS) error {
		h, err := fs.LookupPath(args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		token, err := digest.Compact(h, fs.RootPath())
		if err != nil {
			return err
		}
		wire := bytes.TrimRight(token[:], "\x00")
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", hex.EncodeToString(wire), h.Kind, h.Path)
		return nil
	})
}

// decodeHandle needs only the export root, not the agent.
func decodeHandle(cmd *cobra.Command, text string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root, err := cfg.ExportRoot()
	if err != nil {
		return err
	}
	raw, err := hex.DecodeString(text)
	if err != nil {
		return fmt.Errorf("handle is not hex: %w", err)
	}
	token, err := digest.FromBytes(raw)
	if err != nil {
		return err
	}
	h, err := digest.Expand(token, root)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", h.Kind, h.Path)
	return nil
}
