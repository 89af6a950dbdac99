package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/novelforge/novelforge/pkg/config"
	"github.com/novelforge/novelforge/pkg/engine"
	"github.com/novelforge/novelforge/pkg/events"
	"github.com/novelforge/novelforge/pkg/llm"
	"github.com/novelforge/novelforge/pkg/models"
	"github.com/novelforge/novelforge/pkg/pipeline"
	"github.com/novelforge/novelforge/pkg/stepexec"
	"github.com/novelforge/novelforge/pkg/store"
)

// app bundles the in-process wiring a command needs.
type app struct {
	engine *engine.Engine
	store  *store.Store
}

// newApp wires the engine against the local storage root from configuration.
// CLI runs keep the log output quiet; errors still reach the user through
// command results.
func newApp(ctx context.Context, flags *rootFlags) (*app, error) {
	_ = godotenv.Load(filepath.Join(flags.configDir, ".env"))

	cfg, err := config.Initialize(ctx, flags.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize configuration: %w", err)
	}

	st, err := store.New(cfg.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open project store: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := events.NewPublisher(st, events.NewBroker())

	dispatcher, err := llm.NewDispatcher(cfg, publisher, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider dispatcher: %w", err)
	}

	runner := stepexec.NewRunner(st, dispatcher, publisher, cfg.Engine, logger)
	return &app{
		engine: engine.New(st, runner, publisher, cfg.Engine, logger),
		store:  st,
	}, nil
}

// parseStepArg accepts a step index or a step name ("scene_list").
func parseStepArg(arg string) (int, error) {
	if idx, err := strconv.Atoi(arg); err == nil {
		if idx < 0 || idx >= pipeline.Count() {
			return 0, fmt.Errorf("step index %d out of range [0, %d]", idx, pipeline.Count()-1)
		}
		return idx, nil
	}
	for i := range pipeline.Count() {
		if pipeline.Name(i) == arg {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown step %q", arg)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStepResult(cmd *cobra.Command, flags *rootFlags, env *models.Envelope) error {
	if flags.jsonOutput {
		return printJSON(cmd, env)
	}
	cmd.Printf("Step %d (%s) completed: model=%s attempts=%d hash=%s\n",
		env.Step, pipeline.Name(env.Step), env.Model, env.Attempts, shortHash(env.ContentHash))
	if env.Degraded {
		cmd.Println("Warning: output is a degraded fallback, revise when providers recover")
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
