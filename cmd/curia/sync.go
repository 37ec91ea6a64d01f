package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/curia/internal/app"
	"github.com/ternarybob/curia/internal/models"
)

var (
	syncFull       bool
	syncBodyFilter string
)

var syncCmd = &cobra.Command{
	Use:   "sync <url>",
	Short: "Sync one registered source",
	Long: `Runs a sync job against one OParl source. Unregistered URLs are
registered on the fly. Without --full the job syncs incrementally from the
last recorded high-water mark.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), appConfig, appLogger, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Orchestrator.Sync(cmd.Context(), args[0], syncFull, syncBodyFilter)
		if result != nil {
			printSourceResult(result)
		}
		if err != nil {
			return syncFailure(err)
		}
		if !result.Success {
			return &exitError{code: 1}
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "force a full scan of every list")
	syncCmd.Flags().StringVar(&syncBodyFilter, "body-filter", "",
		"only sync bodies whose id or name contains this string")
}

func printSourceResult(result *models.SourceSyncResult) {
	status := "OK"
	if !result.Success {
		status = "FAILED"
	}
	fmt.Printf("%s  %s  (%s)\n", status, result.SourceURL, result.Duration.Round(timeRound))

	for _, kind := range models.SyncedKinds {
		if n := result.Counts[kind]; n > 0 {
			fmt.Printf("  %-16s %d\n", kind, n)
		}
	}
	if result.Tombstones > 0 {
		fmt.Printf("  %-16s %d\n", "deleted", result.Tombstones)
	}
	if result.Skipped > 0 {
		fmt.Printf("  %-16s %d\n", "skipped", result.Skipped)
	}
	fmt.Printf("  requests=%d cache_hits=%d retries=%d failures=%d\n",
		result.HTTPStats.Requests, result.HTTPStats.CacheHits,
		result.HTTPStats.Retries, result.HTTPStats.Failures)

	for _, errText := range result.Errors {
		fmt.Printf("  error: %s\n", errText)
	}
}
