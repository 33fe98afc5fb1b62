package main

import (
	"github.com/jimdaga/friend-frenzy/internal/config"
	"github.com/jimdaga/friend-frenzy/internal/worker"
	"github.com/spf13/cobra"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the asynq worker and the poll expiry scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Queued tasks run inline inside the worker.
			a, err := loadApp(config.ModeInline)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.wireInsights(); err != nil {
				return err
			}

			stopScheduler, err := worker.StartScheduler(a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer stopScheduler()

			return worker.Run(a.cfg, a.workerDeps())
		},
	}
}
