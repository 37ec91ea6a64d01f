package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/curia/internal/app"
)

const timeRound = 10 * time.Millisecond

var (
	syncAllFull     bool
	syncAllParallel bool
)

var syncAllCmd = &cobra.Command{
	Use:   "sync-all",
	Short: "Sync every registered source",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), appConfig, appLogger, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Orchestrator.SyncAll(cmd.Context(), syncAllFull, syncAllParallel)
		if err != nil {
			return syncFailure(err)
		}

		failed := false
		for _, result := range results {
			printSourceResult(result)
			if !result.Success {
				failed = true
			}
		}
		if failed {
			return &exitError{code: 1}
		}
		return nil
	},
}

func init() {
	syncAllCmd.Flags().BoolVar(&syncAllFull, "full", false, "force a full scan of every list")
	syncAllCmd.Flags().BoolVar(&syncAllParallel, "parallel", false,
		"sync sources in parallel instead of sequentially")
}
