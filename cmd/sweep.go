package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run a single scheduler sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, log, err := setup()
			if err != nil {
				return err
			}
			defer application.Close()
			defer func() { _ = log.Sync() }()

			result, err := application.RunSweep(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("batch %s: %d prompts, %d jobs created\n",
				result.BatchKey, result.PromptCount, result.JobsCreated)
			return nil
		},
	}
}
