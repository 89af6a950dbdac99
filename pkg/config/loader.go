package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// NovelforgeYAMLConfig represents the complete novelforge.yaml file structure
type NovelforgeYAMLConfig struct {
	System *SystemYAMLConfig   `yaml:"system"`
	Tiers  map[string][]string `yaml:"tiers"`
	Engine *EngineYAMLConfig   `yaml:"engine"`
}

// SystemYAMLConfig groups system-wide infrastructure settings.
type SystemYAMLConfig struct {
	ListenAddr       string   `yaml:"listen_addr"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
	StorageRoot      string   `yaml:"storage_root"`
}

// ProvidersYAMLConfig represents the complete llm-providers.yaml file structure
type ProvidersYAMLConfig struct {
	Providers map[string]ProviderConfig `yaml:"llm_providers"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir (empty configDir = built-ins only)
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined configurations
//  5. Build in-memory registries
//  6. Apply default values
//  7. Validate all configuration
//  8. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"providers", stats.Providers,
		"tiers", stats.Tiers,
		"storage_root", cfg.StorageRoot)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	// 1. Load novelforge.yaml (system, tiers, engine). With no config
	//    directory the built-ins alone are a runnable configuration.
	mainConfig := &NovelforgeYAMLConfig{}
	userProviders := map[string]ProviderConfig{}
	if configDir != "" {
		var err error
		mainConfig, err = loader.loadNovelforgeYAML()
		if err != nil {
			return nil, NewLoadError("novelforge.yaml", err)
		}

		// 2. Load llm-providers.yaml
		userProviders, err = loader.loadProvidersYAML()
		if err != nil {
			return nil, NewLoadError("llm-providers.yaml", err)
		}
	}

	// 3. Get built-in configuration
	builtin := GetBuiltinConfig()

	// 4. Merge built-in + user-defined components (user overrides built-in)
	providers := mergeProviders(builtin.Providers, userProviders)
	tiers, err := mergeTierChains(builtin.TierChains, mainConfig.Tiers)
	if err != nil {
		return nil, NewLoadError("novelforge.yaml", err)
	}

	// 5. Build registries
	providerRegistry := NewProviderRegistry(providers)

	// 6. Resolve engine config (merge user YAML with built-in defaults).
	// Start with defaults, then merge user config on top to preserve
	// unset defaults.
	engineYAML := defaultEngineYAML()
	if mainConfig.Engine != nil {
		if err := mergo.Merge(engineYAML, mainConfig.Engine, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge engine config: %w", err)
		}
	}
	engineCfg, err := parseEngineConfig(engineYAML)
	if err != nil {
		return nil, NewLoadError("novelforge.yaml", err)
	}

	// 7. Resolve system config (server + storage root)
	serverCfg := resolveServerConfig(mainConfig.System)
	storageRoot := resolveStorageRoot(mainConfig.System)

	return &Config{
		configDir:        configDir,
		Server:           serverCfg,
		StorageRoot:      storageRoot,
		Engine:           engineCfg,
		Tiers:            tiers,
		ProviderRegistry: providerRegistry,
	}, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax
	data = ExpandEnv(data)

	// Parse YAML
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadNovelforgeYAML() (*NovelforgeYAMLConfig, error) {
	var config NovelforgeYAMLConfig

	// Initialize maps to avoid nil maps
	config.Tiers = make(map[string][]string)

	if err := l.loadYAML("novelforge.yaml", &config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (l *configLoader) loadProvidersYAML() (map[string]ProviderConfig, error) {
	var config ProvidersYAMLConfig

	// Initialize map to avoid nil map
	config.Providers = make(map[string]ProviderConfig)

	if err := l.loadYAML("llm-providers.yaml", &config); err != nil {
		return nil, err
	}

	return config.Providers, nil
}

// resolveServerConfig resolves HTTP server configuration from system YAML, applying defaults.
func resolveServerConfig(sys *SystemYAMLConfig) *ServerConfig {
	cfg := &ServerConfig{
		ListenAddr: ":8080",
	}

	if sys == nil {
		return cfg
	}

	if sys.ListenAddr != "" {
		cfg.ListenAddr = sys.ListenAddr
	}
	if len(sys.AllowedWSOrigins) > 0 {
		cfg.AllowedWSOrigins = sys.AllowedWSOrigins
	}

	return cfg
}

// resolveStorageRoot resolves the project store root from system YAML, applying defaults.
func resolveStorageRoot(sys *SystemYAMLConfig) string {
	if sys != nil && sys.StorageRoot != "" {
		return sys.StorageRoot
	}
	return "./projects"
}
