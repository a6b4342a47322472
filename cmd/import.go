package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/introhq/introhq/internal/importer"
)

var (
	importUserID string
	importPolicy string
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import contacts from a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if importUserID == "" {
			return eris.New("--user is required")
		}
		policy, err := importer.ParseConflictPolicy(importPolicy)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "open csv")
		}
		defer f.Close() //nolint:errcheck

		// One-shot command: no job runner, so sweep synchronously after.
		pipeline := importer.New(env.Store, env.Resolver, nil, cfg.Import.ChunkSize)
		summary, err := pipeline.Run(ctx, importUserID, f, policy)
		if err != nil {
			return err
		}

		fmt.Printf("rows=%d created=%d updated=%d skipped=%d\n",
			summary.TotalRows, summary.Created, summary.Updated, summary.Skipped)
		for _, skip := range summary.SkippedRows {
			fmt.Printf("  row %d skipped: %s (%s)\n", skip.Row, skip.Reason, skip.Email)
		}

		stats, err := env.Sweeper.Sweep(ctx, importUserID)
		if err != nil {
			return err
		}
		fmt.Printf("geocoded: cache=%d api=%d failed=%d updated=%d\n",
			stats.CacheHits, stats.APIResolved, stats.Failed, stats.ContactsUpdated)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importUserID, "user", "", "owner user id (required)")
	importCmd.Flags().StringVar(&importPolicy, "policy", "skip", "duplicate policy: skip or update")
	rootCmd.AddCommand(importCmd)
}
