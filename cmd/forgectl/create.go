package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type createOptions struct {
	seed     string
	seedFile string
}

func newCreateCmd(flags *rootFlags) *cobra.Command {
	opts := &createOptions{}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new project from a story seed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, flags, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.seed, "seed", "", "Story seed text")
	cmd.Flags().StringVar(&opts.seedFile, "seed-file", "", "Read the story seed from a file")

	return cmd
}

func runCreate(cmd *cobra.Command, flags *rootFlags, opts *createOptions, name string) error {
	seed := opts.seed
	if opts.seedFile != "" {
		data, err := os.ReadFile(opts.seedFile)
		if err != nil {
			return fmt.Errorf("failed to read seed file: %w", err)
		}
		seed = strings.TrimSpace(string(data))
	}
	if seed == "" {
		return fmt.Errorf("a story seed is required (--seed or --seed-file)")
	}

	a, err := newApp(cmd.Context(), flags)
	if err != nil {
		return err
	}

	p, err := a.engine.CreateProject(cmd.Context(), name, seed)
	if err != nil {
		return err
	}

	if flags.jsonOutput {
		return printJSON(cmd, p)
	}
	cmd.Printf("Created project %s (%s)\n", p.ID, p.Name)
	return nil
}
