package main

import (
	"os"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	configDir  string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "forgectl",
		Short:         "forgectl runs the story generation pipeline locally",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfigDir := os.Getenv("CONFIG_DIR")
	if defaultConfigDir == "" {
		defaultConfigDir = "./deploy/config"
	}
	cmd.PersistentFlags().StringVar(&flags.configDir, "config-dir", defaultConfigDir, "Path to configuration directory")
	cmd.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "Output in JSON format")

	cmd.AddCommand(newCreateCmd(flags))
	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newStepCmd(flags))
	cmd.AddCommand(newReviseCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newStatusCmd(flags))
	cmd.AddCommand(newCancelCmd(flags))
	cmd.AddCommand(newListCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
