package main

import (
	"github.com/spf13/cobra"
)

func newValidateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <project-id> <step>",
		Short: "Re-run validation against a stored artifact",
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

			issues, err := a.engine.ValidateOnly(cmd.Context(), args[0], idx)
			if err != nil {
				return err
			}

			if flags.jsonOutput {
				return printJSON(cmd, issues)
			}
			if len(issues) == 0 {
				cmd.Println("Valid")
				return nil
			}
			cmd.Printf("%d issue(s):\n", len(issues))
			for _, issue := range issues {
				cmd.Printf("  [%s] %s\n", issue.Code, issue.Message)
			}
			return nil
		},
	}
}
