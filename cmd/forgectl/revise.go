package main

import (
	"github.com/spf13/cobra"
)

type reviseOptions struct {
	guidance string
}

func newReviseCmd(flags *rootFlags) *cobra.Command {
	opts := &reviseOptions{}

	cmd := &cobra.Command{
		Use:   "revise <project-id> <step>",
		Short: "Regenerate a completed step and retire everything downstream",
		Long: "Regenerate a completed step, optionally steering the output with " +
			"--guidance. All artifacts of later steps are retired to snapshots; " +
			"run the pipeline again to rebuild them from the revised output.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseStepArg(args[1])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}

			env, err := a.engine.ReviseStep(cmd.Context(), args[0], idx, opts.guidance)
			if err != nil {
				return err
			}
			return printStepResult(cmd, flags, env)
		},
	}

	cmd.Flags().StringVar(&opts.guidance, "guidance", "", "Free-text steering folded into the prompt")

	return cmd
}
