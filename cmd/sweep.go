package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var sweepUserID string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Geocode a user's contacts that lack coordinates",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sweepUserID == "" {
			return eris.New("--user is required")
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Sweep.Timeout())
		defer cancel()

		stats, err := env.Sweeper.Sweep(ctx, sweepUserID)
		if err != nil {
			return err
		}

		fmt.Printf("cache=%d api=%d failed=%d updated=%d\n",
			stats.CacheHits, stats.APIResolved, stats.Failed, stats.ContactsUpdated)
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepUserID, "user", "", "owner user id (required)")
	rootCmd.AddCommand(sweepCmd)
}
