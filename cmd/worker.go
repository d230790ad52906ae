package cmd

import (
	"github.com/spf13/cobra"
)

func workerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the queue-consuming job executors",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, log, err := setup()
			if err != nil {
				return err
			}
			defer application.Close()
			defer func() { _ = log.Sync() }()

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return application.RunWorker(ctx)
		},
	}
}
