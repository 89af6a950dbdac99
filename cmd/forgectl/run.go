package main

import (
	"github.com/spf13/cobra"

	"github.com/novelforge/novelforge/pkg/pipeline"
)

type runOptions struct {
	upTo string
}

func newRunCmd(flags *rootFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <project-id>",
		Short: "Execute all remaining steps in order",
		Long: "Execute every unsatisfied step of the pipeline in dependency order, " +
			"stopping at the first failure. Completed steps whose inputs are " +
			"unchanged are skipped. Ctrl-C cancels the active step without " +
			"writing a partial artifact.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, flags, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.upTo, "up-to", "", "Stop after this step (index or name)")

	return cmd
}

func runRun(cmd *cobra.Command, flags *rootFlags, opts *runOptions, projectID string) error {
	upTo := pipeline.Count() - 1
	if opts.upTo != "" {
		idx, err := parseStepArg(opts.upTo)
		if err != nil {
			return err
		}
		upTo = idx
	}

	a, err := newApp(cmd.Context(), flags)
	if err != nil {
		return err
	}

	runErr := a.engine.ExecuteAll(cmd.Context(), projectID, upTo)

	report, err := a.engine.Status(projectID)
	if err == nil {
		if flags.jsonOutput {
			_ = printJSON(cmd, report)
		} else {
			cmd.Printf("Project %s: status=%s completed=%d/%d\n",
				projectID, report.Project.Status, len(report.Project.CompletedSteps), pipeline.Count())
		}
	}
	return runErr
}
