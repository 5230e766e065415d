package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON returns the JSON object embedded in a model answer. Code fences
// are removed and anything before the first '{' or after the last '}' is
// dropped.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// DecodeJSON unmarshals the JSON object found in raw into v.
func DecodeJSON(raw string, v any) error {
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), v); err != nil {
		return fmt.Errorf("decode llm json: %w", err)
	}
	return nil
}
