package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/curia/internal/app"
	"github.com/ternarybob/curia/internal/common"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the periodic sync daemon",
	Long: `Starts the scheduler and keeps syncing all registered sources on the
configured cron schedule until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		common.PrintBanner(common.GetVersion())

		a, err := app.New(cmd.Context(), appConfig, appLogger, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		schedule := appConfig.Scheduler.Schedule
		if err := a.SchedulerService.Start(schedule); err != nil {
			return syncFailure(err)
		}

		// First cycle runs immediately; the schedule covers the rest
		a.SchedulerService.TriggerNow()

		appLogger.Info().Str("schedule", schedule).Msg("Sync daemon running, Ctrl-C to stop")

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		appLogger.Info().Msg("Shutting down")
		return nil
	},
}
