package main

import (
	"github.com/spf13/cobra"
)

func newStepCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "step <project-id> <step>",
		Short: "Execute a single step (index or name)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseStepArg(args[1])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}

			env, err := a.engine.ExecuteStep(cmd.Context(), args[0], idx)
			if err != nil {
				return err
			}
			return printStepResult(cmd, flags, env)
		},
	}
}
