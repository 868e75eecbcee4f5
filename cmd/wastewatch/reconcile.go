package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/wastewatch/pkg/cli"
	"mercator-hq/wastewatch/pkg/retention"
)

var reconcileFlags struct {
	grace string
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair drift between the artifact store and the index",
	Long: `Remove stored artifacts that have no index row, and index rows whose
artifact is gone. Only entries older than the grace period are touched, so
requests in flight are never raced. Runs regardless of
retention.reconcile.enabled.`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().StringVar(&reconcileFlags.grace, "grace", "", "override retention.reconcile.grace (e.g. 30m)")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	grace := cfg.Retention.Reconcile.Grace
	if reconcileFlags.grace != "" {
		grace, err = parseNonNegativeDuration(reconcileFlags.grace)
		if err != nil {
			return cli.NewConfigError("--grace", err.Error())
		}
	}

	store, idx, err := openBackends(cfg)
	if err != nil {
		return cli.NewCommandError("reconcile", err)
	}
	defer idx.Close()

	result, err := retention.NewReconciler(idx, store, grace, nil).Reconcile(cmd.Context())
	if err != nil {
		return cli.NewCommandError("reconcile", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Removed %d orphan files and %d dangling rows (%d errors)\n",
		len(result.OrphanFiles), len(result.DanglingRows), result.Errors)
	if verbose {
		for _, loc := range result.OrphanFiles {
			fmt.Fprintf(out, "  orphan file: %s\n", loc)
		}
		for _, loc := range result.DanglingRows {
			fmt.Fprintf(out, "  dangling row: %s\n", loc)
		}
	}
	return nil
}
