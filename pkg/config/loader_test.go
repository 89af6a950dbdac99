package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/pkg/models"
)

func TestInitialize(t *testing.T) {
	// Create temporary config directory with valid config files
	configDir := setupTestConfigDir(t)

	// Set required environment variables for built-in tier chains
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")

	ctx := context.Background()
	cfg, err := Initialize(ctx, configDir)

	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify registries are populated
	assert.NotNil(t, cfg.ProviderRegistry)
	assert.NotNil(t, cfg.Engine)
	assert.NotNil(t, cfg.Server)

	// Verify built-in configs are loaded
	assert.True(t, cfg.ProviderRegistry.Has("anthropic-balanced"))
	assert.True(t, cfg.ProviderRegistry.Has("stub"))
	assert.True(t, cfg.Tiers.Has(models.TierQuality))

	// Verify stats
	stats := cfg.Stats()
	assert.Greater(t, stats.Providers, 0)
	assert.Equal(t, 3, stats.Tiers)
}

func TestInitializeBuiltinsOnly(t *testing.T) {
	// Empty configDir means built-ins only; still a runnable configuration.
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg, err := Initialize(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"anthropic-fast", "openai-fast"}, cfg.ChainFor(models.TierFast))
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "./projects", cfg.StorageRoot)
	assert.Equal(t, 8, cfg.Engine.FanoutConcurrency)
	assert.Len(t, cfg.Engine.CooldownSchedule, 8)
}

func TestInitializeConfigNotFound(t *testing.T) {
	ctx := context.Background()
	_, err := Initialize(ctx, "/nonexistent/directory")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestInitializeInvalidYAML(t *testing.T) {
	configDir := t.TempDir()

	// Write invalid YAML
	invalidYAML := `{{{`
	err := os.WriteFile(filepath.Join(configDir, "novelforge.yaml"), []byte(invalidYAML), 0644)
	require.NoError(t, err)

	// Create empty llm-providers.yaml
	err = os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte("llm_providers: {}"), 0644)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = Initialize(ctx, configDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestInitializeValidationFailure(t *testing.T) {
	configDir := t.TempDir()

	// Tier chain referencing an unknown provider
	invalidConfig := `
tiers:
  fast: ["nonexistent-provider"]
`
	err := os.WriteFile(filepath.Join(configDir, "novelforge.yaml"), []byte(invalidConfig), 0644)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte("llm_providers: {}"), 0644)
	require.NoError(t, err)

	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")

	ctx := context.Background()
	_, err = Initialize(ctx, configDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "nonexistent-provider")
}

func TestLoadNovelforgeYAML(t *testing.T) {
	configDir := t.TempDir()

	config := `
system:
  listen_addr: ":9090"
  storage_root: "/var/lib/novelforge"
  allowed_ws_origins:
    - "https://studio.example.com"

tiers:
  quality: ["anthropic-quality"]

engine:
  fanout_concurrency: 4
  max_revisions: 2
`
	err := os.WriteFile(filepath.Join(configDir, "novelforge.yaml"), []byte(config), 0644)
	require.NoError(t, err)

	loader := &configLoader{configDir: configDir}
	mainConfig, err := loader.loadNovelforgeYAML()

	require.NoError(t, err)
	require.NotNil(t, mainConfig.System)
	assert.Equal(t, ":9090", mainConfig.System.ListenAddr)
	assert.Equal(t, "/var/lib/novelforge", mainConfig.System.StorageRoot)
	assert.Len(t, mainConfig.Tiers, 1)
	require.NotNil(t, mainConfig.Engine)
	assert.Equal(t, 4, mainConfig.Engine.FanoutConcurrency)
}

func TestLoadProvidersYAML(t *testing.T) {
	configDir := t.TempDir()

	config := `
llm_providers:
  local-proxy:
    type: openai
    model: llama-3.1-70b
    api_key_env: PROXY_API_KEY
    base_url: "http://localhost:8000/v1"
`
	err := os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte(config), 0644)
	require.NoError(t, err)

	loader := &configLoader{configDir: configDir}
	providers, err := loader.loadProvidersYAML()

	require.NoError(t, err)
	assert.Len(t, providers, 1)
	provider := providers["local-proxy"]
	assert.Equal(t, ProviderTypeOpenAI, provider.Type)
	assert.Equal(t, "llama-3.1-70b", provider.Model)
	assert.Equal(t, "PROXY_API_KEY", provider.APIKeyEnv)
	assert.Equal(t, "http://localhost:8000/v1", provider.BaseURL)
}

func TestEnvironmentVariableInterpolationInConfig(t *testing.T) {
	configDir := t.TempDir()

	config := `
llm_providers:
  tunneled:
    type: openai
    model: gpt-4o
    api_key_env: OPENAI_API_KEY
    base_url: "{{.TEST_LLM_BASE_URL}}"
`
	err := os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte(config), 0644)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(configDir, "novelforge.yaml"), []byte("tiers: {}"), 0644)
	require.NoError(t, err)

	t.Setenv("TEST_LLM_BASE_URL", "https://llm.internal:8443/v1")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")

	ctx := context.Background()
	cfg, err := Initialize(ctx, configDir)

	require.NoError(t, err)
	provider, err := cfg.GetProvider("tunneled")
	require.NoError(t, err)
	assert.Equal(t, "https://llm.internal:8443/v1", provider.BaseURL)
}

func TestEngineOverridesMergeWithDefaults(t *testing.T) {
	configDir := t.TempDir()

	config := `
engine:
  fanout_concurrency: 3
  step_timeouts:
    fast: "30s"
`
	err := os.WriteFile(filepath.Join(configDir, "novelforge.yaml"), []byte(config), 0644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte("llm_providers: {}"), 0644)
	require.NoError(t, err)

	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg, err := Initialize(context.Background(), configDir)
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, 3, cfg.Engine.FanoutConcurrency)
	assert.Equal(t, 30*time.Second, cfg.Engine.StepTimeouts[models.TierFast])

	// Untouched defaults survive the merge
	assert.Equal(t, 5, cfg.Engine.ProgressEvery)
	assert.Equal(t, 180*time.Second, cfg.Engine.StepTimeouts[models.TierBalanced])
	assert.Equal(t, 5*time.Minute, cfg.Engine.BreakerCooldown)
	assert.Len(t, cfg.Engine.CooldownSchedule, 8)
}

// Helper function to set up test config directory
func setupTestConfigDir(t *testing.T) string {
	dir := t.TempDir()

	novelforgeYAML := `
system:
  listen_addr: ":8080"

tiers: {}
`
	err := os.WriteFile(filepath.Join(dir, "novelforge.yaml"), []byte(novelforgeYAML), 0644)
	require.NoError(t, err)

	llmYAML := `
llm_providers: {}
`
	err = os.WriteFile(filepath.Join(dir, "llm-providers.yaml"), []byte(llmYAML), 0644)
	require.NoError(t, err)

	return dir
}
