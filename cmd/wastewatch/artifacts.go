package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/wastewatch/pkg/cli"
	"mercator-hq/wastewatch/pkg/index"
)

var artifactsFlags struct {
	output  string
	limit   int
	expired bool
}

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Inspect registered artifacts",
}

var artifactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List artifacts in the retention index",
	Long: `List artifacts registered in the retention index, oldest first.

Examples:
  # Table output
  wastewatch artifacts list

  # Only artifacts the next sweep will delete, as JSON
  wastewatch artifacts list --expired --output json`,
	RunE: runArtifactsList,
}

func init() {
	rootCmd.AddCommand(artifactsCmd)
	artifactsCmd.AddCommand(artifactsListCmd)

	artifactsListCmd.Flags().StringVarP(&artifactsFlags.output, "output", "o", "text", "output format (text, json, csv)")
	artifactsListCmd.Flags().IntVar(&artifactsFlags.limit, "limit", 0, "maximum number of records (0 for all)")
	artifactsListCmd.Flags().BoolVar(&artifactsFlags.expired, "expired", false, "only list records that have expired")
}

func runArtifactsList(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(artifactsFlags.output))
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	idx, err := index.Open(&cfg.Index)
	if err != nil {
		return cli.NewCommandError("artifacts list", err)
	}
	defer idx.Close()

	records, err := idx.List(cmd.Context(), artifactsFlags.limit)
	if err != nil {
		return cli.NewCommandError("artifacts list", err)
	}

	return formatter.Write(cmd.OutOrStdout(), recordTable(records, time.Now(), artifactsFlags.expired))
}

// recordTable renders records as of now. With expiredOnly, records that
// have not expired yet are skipped.
func recordTable(records []*index.Record, now time.Time, expiredOnly bool) *cli.Table {
	table := &cli.Table{Headers: []string{"id", "location", "created_at", "expires_at", "expired"}}
	for _, r := range records {
		expired := !r.ExpiresAt.After(now)
		if expiredOnly && !expired {
			continue
		}
		table.Append(
			r.ID,
			r.Location,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.ExpiresAt.UTC().Format(time.RFC3339),
			strconv.FormatBool(expired),
		)
	}
	return table
}

func parseNonNegativeDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be non-negative, got %s", s)
	}
	return d, nil
}
