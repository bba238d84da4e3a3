// Package jsonutil decodes stage payloads. A payload may arrive bare, wrapped
// by a Step Functions Lambda task as {"Payload": ...}, or double-encoded as a
// JSON string by an operator invoking a function by hand.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// maxUnwrap bounds the number of envelopes Unwrap peels off.
const maxUnwrap = 4

// Unwrap removes Payload envelopes and string encoding from raw until a bare
// JSON value remains. Input that is not JSON is returned trimmed.
func Unwrap(raw []byte) []byte {
	data := bytes.TrimSpace(raw)
	for i := 0; i < maxUnwrap; i++ {
		if len(data) == 0 {
			return data
		}
		switch data[0] {
		case '"':
			var s string
			if err := json.Unmarshal(data, &s); err != nil {
				return data
			}
			data = bytes.TrimSpace([]byte(s))
		case '{':
			var env map[string]json.RawMessage
			if err := json.Unmarshal(data, &env); err != nil {
				return data
			}
			inner, ok := env["Payload"]
			if !ok || len(env) > 1 && !hasOnlyTaskKeys(env) {
				return data
			}
			data = bytes.TrimSpace(inner)
		default:
			return data
		}
	}
	return data
}

// The lambda:invoke integration reports these next to Payload.
func hasOnlyTaskKeys(env map[string]json.RawMessage) bool {
	for k := range env {
		switch k {
		case "Payload", "StatusCode", "ExecutedVersion", "SdkHttpMetadata", "SdkResponseMetadata":
		default:
			return false
		}
	}
	return true
}

// Decode unwraps raw and unmarshals it into T. An empty payload decodes to
// the zero value.
func Decode[T any](raw []byte) (T, error) {
	var result T
	data := Unwrap(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return result, nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		var zero T
		// Include a truncated preview in the error for debugging
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return zero, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}
	return result, nil
}
