package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go
// templates with {{.VAR_NAME}} syntax. Plain $VAR expansion would mangle
// the literal dollar signs that show up in config values here, such as
// seed briefs ("a heist for $40 million") or base URLs carrying query
// strings.
//
// Missing variables expand to empty; validation catches required fields
// that end up blank. Content that does not parse or execute as a template
// passes through untouched, so plain YAML is never broken by expansion.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		// Cut on the first = so values containing = stay intact.
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			env[key] = value
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}
	return buf.Bytes()
}
