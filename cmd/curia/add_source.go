package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/ternarybob/curia/internal/app"
)

var addSourceCmd = &cobra.Command{
	Use:   "add-source <url>",
	Short: "Register an OParl endpoint",
	Long: `Registers an OParl endpoint for syncing. The URL may point at a System
document, a single Body document, or a body list; detection happens on sync.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawURL := args[0]
		parsed, err := url.Parse(rawURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid source URL %q", rawURL)
		}

		a, err := app.New(cmd.Context(), appConfig, appLogger, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		source, err := a.Orchestrator.AddSource(cmd.Context(), rawURL)
		if err != nil {
			return syncFailure(err)
		}

		fmt.Printf("Registered source %s", source.URL)
		if source.Name != "" {
			fmt.Printf(" (%s)", source.Name)
		}
		fmt.Println()
		return nil
	},
}
