package stepexec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantJSON     string
		wantDegraded bool
	}{
		{
			name:     "direct object",
			text:     `{"logline": "a detective hunts her partner"}`,
			wantJSON: `{"logline": "a detective hunts her partner"}`,
		},
		{
			name:     "direct array",
			text:     `[{"index": 1}]`,
			wantJSON: `[{"index": 1}]`,
		},
		{
			name:     "leading and trailing whitespace",
			text:     "\n  {\"a\": 1}  \n",
			wantJSON: `{"a": 1}`,
		},
		{
			name:     "json code fence",
			text:     "```json\n{\"a\": 1}\n```",
			wantJSON: `{"a": 1}`,
		},
		{
			name:     "bare code fence",
			text:     "```\n{\"a\": 1}\n```",
			wantJSON: `{"a": 1}`,
		},
		{
			name:     "fence with commentary around it",
			text:     "Here is the result:\n```json\n{\"a\": 1}\n```\nLet me know if you need changes.",
			wantJSON: `{"a": 1}`,
		},
		{
			name:     "embedded object in prose",
			text:     `Sure! The payload is {"a": "one", "b": {"c": 2}} as requested.`,
			wantJSON: `{"a": "one", "b": {"c": 2}}`,
		},
		{
			name:     "embedded object with braces inside strings",
			text:     `Answer: {"text": "use { and } carefully", "n": 1} done`,
			wantJSON: `{"text": "use { and } carefully", "n": 1}`,
		},
		{
			name:     "key value extraction from broken json",
			text:     `The "logline": "a detective hunts her partner" and "lead": "a detective" but no braces balance {`,
			wantJSON: `{"lead":"a detective","logline":"a detective hunts her partner"}`,
		},
		{
			name:         "unstructured prose degrades",
			text:         "She walked into the rain without looking back.",
			wantJSON:     `{"content":"She walked into the rain without looking back."}`,
			wantDegraded: true,
		},
		{
			name:         "bare scalar degrades",
			text:         `"just a string"`,
			wantJSON:     `{"content":"\"just a string\""}`,
			wantDegraded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, degraded := parseResponse(tt.text)
			assert.Equal(t, tt.wantDegraded, degraded)
			assert.JSONEq(t, tt.wantJSON, string(raw))
		})
	}
}

func TestParseResponseAlwaysYieldsValidJSON(t *testing.T) {
	for _, text := range []string{"", "}{", "``` ```", "null"} {
		raw, _ := parseResponse(text)
		require.True(t, json.Valid(raw), "input %q", text)
	}
}

func TestFirstJSONBlock(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, firstJSONBlock(`before {"a": 1} after`))
	assert.Equal(t, `[1, 2]`, firstJSONBlock(`list: [1, 2]`))
	assert.Equal(t, `{"s": "\"}"}`, firstJSONBlock(`x {"s": "\"}"} y`))
	assert.Equal(t, "", firstJSONBlock("no structure here"))
	assert.Equal(t, "", firstJSONBlock(`{"unterminated": `))
}
