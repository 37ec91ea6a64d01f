package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/curia/internal/app"
	"github.com/ternarybob/curia/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registered sources and mirror row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), appConfig, appLogger, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		sources, err := a.StorageManager.SourceStorage().ListSources(ctx)
		if err != nil {
			return syncFailure(err)
		}

		if len(sources) == 0 {
			fmt.Println("No sources registered. Run `curia add-source <url>` first.")
			return nil
		}

		for _, source := range sources {
			fmt.Printf("%s", source.URL)
			if source.Name != "" {
				fmt.Printf("  (%s)", source.Name)
			}
			fmt.Println()
			fmt.Printf("  last sync:      %s\n", formatSyncTime(source.LastSync))
			fmt.Printf("  last full sync: %s\n", formatSyncTime(source.LastFullSync))

			bodies, err := a.StorageManager.BodyStorage().ListBodies(ctx, source.ID)
			if err != nil {
				return syncFailure(err)
			}
			for _, body := range bodies {
				fmt.Printf("  body %s (%s), last sync %s\n",
					body.Name, body.ExternalID, formatSyncTime(body.LastSync))
			}
		}

		counts, err := a.StorageManager.EntityStorage().Counts(ctx)
		if err != nil {
			return syncFailure(err)
		}

		fmt.Println("\nMirror contents:")
		fmt.Printf("  %-16s %d\n", models.KindBody, counts[models.KindBody])
		for _, kind := range models.SyncedKinds {
			fmt.Printf("  %-16s %d\n", kind, counts[kind])
		}
		return nil
	},
}

func formatSyncTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}
