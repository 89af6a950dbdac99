// NovelForge server exposes the generation pipeline over HTTP and streams
// per-project lifecycle events over WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/novelforge/novelforge/pkg/api"
	"github.com/novelforge/novelforge/pkg/config"
	"github.com/novelforge/novelforge/pkg/engine"
	"github.com/novelforge/novelforge/pkg/events"
	"github.com/novelforge/novelforge/pkg/llm"
	"github.com/novelforge/novelforge/pkg/stepexec"
	"github.com/novelforge/novelforge/pkg/store"
	"github.com/novelforge/novelforge/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	slog.Info("Starting NovelForge",
		"version", version.GitCommit,
		"config_dir", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, *configDir); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

func run(ctx context.Context, configDir string) error {
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	stats := cfg.Stats()
	slog.Info("Configuration loaded",
		"providers", stats.Providers,
		"tiers", stats.Tiers,
		"storage_root", cfg.StorageRoot)

	st, err := store.New(cfg.StorageRoot)
	if err != nil {
		return fmt.Errorf("failed to open project store: %w", err)
	}

	broker := events.NewBroker()
	publisher := events.NewPublisher(st, broker)

	dispatcher, err := llm.NewDispatcher(cfg, publisher, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize provider dispatcher: %w", err)
	}

	runner := stepexec.NewRunner(st, dispatcher, publisher, cfg.Engine, nil)
	eng := engine.New(st, runner, publisher, cfg.Engine, nil)

	server := api.NewServer(eng, st, broker, cfg.Server, nil)
	return server.Run(ctx)
}
