package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"snmpfs/internal/daemon"
)

var unmountCmd = &cobra.Command{
	Use:     "unmount <mount-point>",
	Aliases: []string{"umount"},
	Short:   "Unmount an export",
	Long: `Unmounts an export mounted with 'snmpfs mount'.

The daemon keeps running. A mount made through export.mount_point is
removed by 'snmpfs daemon stop' instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnmount,
}

func init() {
	rootCmd.AddCommand(unmountCmd)
}

func runUnmount(cmd *cobra.Command, args []string) error {
	target, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve mount point: %w", err)
	}
	if !daemon.IsMounted(target) {
		return fmt.Errorf("not mounted: %s", target)
	}
	if err := daemon.Unmount(target); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Unmounted %s\n", target)
	return nil
}
