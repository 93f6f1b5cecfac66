package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadAgentSettings reads the agent settings document from path. It is
// sent verbatim as the first message on every agent connection, so it
// is loaded once at process start and held read-only rather than
// re-read per call.
func LoadAgentSettings(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent settings %s: %w", path, err)
	}

	// Validate up front so a broken file fails at startup, not on the
	// first call.
	var probe map[string]interface{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("agent settings %s is not a JSON object: %w", path, err)
	}

	return json.RawMessage(data), nil
}
