package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show per-step state for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}

			report, err := a.engine.Status(args[0])
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return printJSON(cmd, report)
			}

			cmd.Printf("Project %s (%s): %s\n\n", report.Project.ID, report.Project.Name, report.Project.Status)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STEP\tNAME\tSTATE\tMODEL\tATTEMPTS")
			for _, s := range report.Steps {
				model := s.Model
				if model == "" {
					model = "-"
				}
				state := string(s.State)
				if s.Degraded {
					state += " (degraded)"
				}
				if !s.NextAllowed.IsZero() {
					state += " until " + s.NextAllowed.Format("15:04:05")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", s.Index, s.Name, state, model, s.Attempts)
			}
			return w.Flush()
		},
	}
}
