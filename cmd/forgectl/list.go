package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects in the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), flags)
			if err != nil {
				return err
			}

			snaps, err := a.engine.List()
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return printJSON(cmd, snaps)
			}
			if len(snaps) == 0 {
				cmd.Println("No projects")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCOMPLETED")
			for _, s := range snaps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.ProjectID, s.Name, s.Status, len(s.CompletedSteps))
			}
			return w.Flush()
		},
	}
}
