package cmd

import (
	"github.com/spf13/cobra"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the periodic scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, log, err := setup()
			if err != nil {
				return err
			}
			defer application.Close()
			defer func() { _ = log.Sync() }()

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return application.RunServe(ctx)
		},
	}
}
