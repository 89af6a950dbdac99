package config

// ProviderType defines supported LLM provider backends
type ProviderType string

const (
	// ProviderTypeAnthropic is the Anthropic Messages API
	ProviderTypeAnthropic ProviderType = "anthropic"
	// ProviderTypeOpenAI is an OpenAI-compatible chat completions API
	ProviderTypeOpenAI ProviderType = "openai"
	// ProviderTypeStub is a deterministic in-process provider for tests and dry runs
	ProviderTypeStub ProviderType = "stub"
)

// IsValid checks if the provider type is valid
func (t ProviderType) IsValid() bool {
	switch t {
	case ProviderTypeAnthropic, ProviderTypeOpenAI, ProviderTypeStub:
		return true
	default:
		return false
	}
}

// NeedsAPIKey reports whether credentials are required to call this backend.
func (t ProviderType) NeedsAPIKey() bool {
	return t == ProviderTypeAnthropic || t == ProviderTypeOpenAI
}
