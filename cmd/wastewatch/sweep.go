package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/wastewatch/pkg/cli"
	"mercator-hq/wastewatch/pkg/retention"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one expiry sweep now",
	Long: `Delete every artifact whose expiry time has passed, then remove the
corresponding index rows. Safe to run while the server is running.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, idx, err := openBackends(cfg)
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	defer idx.Close()

	result, err := retention.NewSweeper(idx, store).Sweep(cmd.Context())
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Swept %d expired artifacts (files deleted: %d, file errors: %d, rows deleted: %d) in %s\n",
		result.Expired, result.FilesDeleted, result.FileErrors, result.RowsDeleted, result.Duration)
	return nil
}
