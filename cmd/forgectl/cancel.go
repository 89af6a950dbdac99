package main

import (
	"github.com/spf13/cobra"
)

func newCancelCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <project-id>",
		Short: "Cancel the project's active run in this process",
		Long: "Cancel the project's active run. Runs started by this process " +
			"stop at the next step boundary or provider call; a foreground " +
			"`forgectl run` is cancelled with Ctrl-C instead, and runs owned " +
			"by a novelforge server are cancelled through its API.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if a.engine.Cancel(args[0]) {
				cmd.Println("Cancelled")
				return nil
			}
			cmd.Println("No active run")
			return nil
		},
	}
}
