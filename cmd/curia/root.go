package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curia/internal/common"
)

// Exit codes: 0 success, 1 sync failure, 2 usage or configuration error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// syncFailure wraps an error as exit code 1 and prints it, since cobra's
// SilenceErrors is on for these commands.
func syncFailure(err error) error {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return &exitError{code: 1, err: err}
}

var (
	configPaths []string
	logLevel    string

	appConfig *common.Config
	appLogger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "curia",
	Short: "Mirror OParl parliamentary data into a relational store",
	Long: `Curia syncs OParl endpoints (municipal council information systems)
into a local SQLite mirror: bodies, organizations, persons, memberships,
meetings, papers, agenda items, files, locations and consultations.`,
	Version:       common.GetFullVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := common.LoadFromFiles(configPaths...)
		if err != nil {
			return err
		}
		if logLevel != "" {
			config.Logging.Level = logLevel
		}

		appConfig = config
		appLogger = common.InitLogger(config)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&configPaths, "config", "c", nil,
		"config file(s), later files override earlier ones")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level override (debug, info, warn, error)")

	rootCmd.AddCommand(addSourceCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(syncAllCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(serveCmd)
}
