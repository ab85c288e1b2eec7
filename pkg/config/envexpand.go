package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv substitutes environment variables referenced as {{.VAR}} in raw
// YAML before decoding. Template syntax leaves literal $ characters alone,
// which tenant files depend on for keyword patterns like "^secret.*$" and
// for credentials embedded in backend URLs.
//
//	chatwoot_api_token: "{{.CHATWOOT_API_TOKEN}}"
//	url: "https://{{.SCHEDULE_HOST}}/api"
//
// An unset variable expands to the empty string; the validation pass rejects
// required fields left empty. Content that fails to parse or execute as a
// template is returned unchanged so files without references load as-is.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("tenant-config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
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
