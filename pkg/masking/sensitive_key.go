package masking

import (
	"encoding/json"
	"strings"
)

// MaskedKeyValue is the replacement for masked sensitive-key values.
const MaskedKeyValue = "[MASKED]"

// sensitiveKeyNames is the closed set of JSON object keys whose values
// are always redacted, regardless of which tool produced the payload.
var sensitiveKeyNames = map[string]bool{
	"api_key":      true,
	"apikey":       true,
	"password":     true,
	"passwd":       true,
	"secret":       true,
	"secret_key":   true,
	"access_token": true,
	"refresh_token": true,
	"token":        true,
	"private_key":  true,
	"client_secret": true,
	"authorization": true,
}

// SensitiveKeyMasker walks JSON-shaped tool output and redacts the
// value of any object key in sensitiveKeyNames, at any nesting depth.
// Unlike the regex patterns in pattern.go, it only fires on well-formed
// JSON and never touches keys it doesn't recognize, so it is safe to
// run ahead of the regex sweep without double-masking unrelated text.
type SensitiveKeyMasker struct{}

// Name returns the unique identifier for this masker.
func (m *SensitiveKeyMasker) Name() string { return "sensitive_key" }

// AppliesTo performs a lightweight check on whether data looks like a
// JSON object or array worth parsing.
func (m *SensitiveKeyMasker) AppliesTo(data string) bool {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return false
	}
	return trimmed[0] == '{' || trimmed[0] == '['
}

// Mask parses data as JSON, redacts sensitive key values at every
// level, and re-serializes. Returns the original data unchanged if it
// does not parse as JSON or re-serialization fails.
func (m *SensitiveKeyMasker) Mask(data string) string {
	trimmed := strings.TrimSpace(data)

	var asObject map[string]any
	if err := json.Unmarshal([]byte(trimmed), &asObject); err == nil {
		maskSensitiveKeys(asObject)
		return reserialize(asObject, data)
	}

	var asArray []any
	if err := json.Unmarshal([]byte(trimmed), &asArray); err == nil {
		for _, item := range asArray {
			if obj, ok := item.(map[string]any); ok {
				maskSensitiveKeys(obj)
			}
		}
		return reserialize(asArray, data)
	}

	return data
}

func reserialize(v any, original string) string {
	out, err := json.Marshal(v)
	if err != nil {
		return original
	}
	result := string(out)
	if strings.HasSuffix(original, "\n") {
		result += "\n"
	}
	return result
}

// maskSensitiveKeys mutates obj in place, replacing the value of any
// sensitive key and recursing into nested objects and arrays.
func maskSensitiveKeys(obj map[string]any) {
	for key, val := range obj {
		if sensitiveKeyNames[strings.ToLower(key)] {
			obj[key] = MaskedKeyValue
			continue
		}
		switch child := val.(type) {
		case map[string]any:
			maskSensitiveKeys(child)
		case []any:
			for _, item := range child {
				if nested, ok := item.(map[string]any); ok {
					maskSensitiveKeys(nested)
				}
			}
		}
	}
}
