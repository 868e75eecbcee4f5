/*
Package cli provides helpers shared by the wastewatch commands: typed
command errors with exit codes, signal-driven contexts and table output in
text, JSON or CSV.

	table := &cli.Table{Headers: []string{"ID", "EXPIRES"}}
	table.Append(rec.ID, rec.ExpiresAt.Format(time.RFC3339))
	f, err := cli.NewFormatter(cli.FormatText)
	if err != nil {
		return err
	}
	return f.Write(os.Stdout, table)

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
