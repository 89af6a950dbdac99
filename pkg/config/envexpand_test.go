package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("NF_TEST_KEY", "sk-abc123")
	t.Setenv("NF_TEST_HOST", "llm.internal")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single variable",
			input:    "api_key: {{.NF_TEST_KEY}}",
			expected: "api_key: sk-abc123",
		},
		{
			name:     "multiple variables in one line",
			input:    "base_url: https://{{.NF_TEST_HOST}}/v1",
			expected: "base_url: https://llm.internal/v1",
		},
		{
			name:     "missing variable expands to empty",
			input:    "value: {{.NF_TEST_DOES_NOT_EXIST}}",
			expected: "value: ",
		},
		{
			name:     "literal dollar signs pass through",
			input:    `seed: "a heist for $40 million"`,
			expected: `seed: "a heist for $40 million"`,
		},
		{
			name:     "no template syntax",
			input:    "listen_addr: :8080",
			expected: "listen_addr: :8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandEnv([]byte(tt.input))
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestExpandEnvMalformedTemplate(t *testing.T) {
	// Unclosed action cannot be parsed; original bytes pass through so the
	// YAML parser can produce its own error.
	input := []byte("value: {{.UNCLOSED")
	assert.Equal(t, input, ExpandEnv(input))
}
