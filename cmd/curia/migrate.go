package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/curia/internal/storage/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the mirror database schema",
	Long: `Runs pending schema migrations. This is the only command that issues
DDL; sync refuses to run against an unmigrated database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := sqlite.NewSQLiteDB(appLogger, &appConfig.Storage.SQLite)
		if err != nil {
			return syncFailure(err)
		}
		defer db.Close()

		if err := db.Migrate(cmd.Context()); err != nil {
			return syncFailure(err)
		}

		fmt.Printf("Database %s migrated\n", appConfig.Storage.SQLite.Path)
		return nil
	},
}
