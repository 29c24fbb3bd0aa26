package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// read_image argument names and defaults.
const (
	argImagePath   = "image_path"
	argPrompt      = "prompt"
	argTemperature = "temperature"
	argMaxTokens   = "max_tokens"

	defaultTemperature = 0.8
	minTemperature     = 0.0
	maxTemperature     = 2.0

	defaultMaxTokens = 1000
	maxMaxTokens     = 1000000
)

var requiredArgs = []string{argImagePath, argPrompt}

// ToolArguments are the validated read_image arguments.
type ToolArguments struct {
	ImagePath   string  `json:"image_path"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// parseArguments decodes the raw tools/call arguments. Missing or null
// arguments decode to an empty map; anything other than a JSON object is an
// error.
func parseArguments(raw json.RawMessage) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]interface{}{}, nil
	}

	var args map[string]interface{}
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, errors.New("arguments must be a JSON object")
	}
	return args, nil
}

// validateRequired returns a message naming every key in keys that is absent
// or null in args, in the order given, or "" when all are present.
func validateRequired(args map[string]interface{}, keys []string) string {
	var missing []string
	for _, key := range keys {
		if v, ok := args[key]; !ok || v == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return ""
	}
	return "missing required parameters: " + strings.Join(missing, ", ")
}

// validateTemperature returns "" when v is a number in [0.0, 2.0], otherwise
// a message describing the allowed range.
func validateTemperature(v interface{}) string {
	t, ok := v.(float64)
	if !ok {
		return fmt.Sprintf("temperature must be a number between %.1f and %.1f, got %s",
			minTemperature, maxTemperature, describeValue(v))
	}
	if math.IsNaN(t) || t < minTemperature || t > maxTemperature {
		return fmt.Sprintf("temperature must be between %.1f and %.1f, got %g",
			minTemperature, maxTemperature, t)
	}
	return ""
}

// validateMaxTokens returns the token cap for v, or a message when v is not a
// whole number in [1, 1000000].
func validateMaxTokens(v interface{}) (int, string) {
	n, ok := v.(float64)
	if !ok || n != math.Trunc(n) {
		return 0, fmt.Sprintf("max_tokens must be an integer, got %s", describeValue(v))
	}
	if n < 1 || n > maxMaxTokens {
		return 0, fmt.Sprintf("max_tokens must be between 1 and %d, got %g", maxMaxTokens, n)
	}
	return int(n), ""
}

// validateArguments applies every argument check, cheapest first: required
// keys, string types, temperature, then max_tokens. It performs no file I/O.
func validateArguments(args map[string]interface{}) (ToolArguments, string) {
	if msg := validateRequired(args, requiredArgs); msg != "" {
		return ToolArguments{}, msg
	}

	out := ToolArguments{Temperature: defaultTemperature, MaxTokens: defaultMaxTokens}

	var ok bool
	if out.ImagePath, ok = args[argImagePath].(string); !ok {
		return ToolArguments{}, fmt.Sprintf("%s must be a string, got %s", argImagePath, describeValue(args[argImagePath]))
	}
	if out.Prompt, ok = args[argPrompt].(string); !ok {
		return ToolArguments{}, fmt.Sprintf("%s must be a string, got %s", argPrompt, describeValue(args[argPrompt]))
	}

	if v, present := args[argTemperature]; present {
		if msg := validateTemperature(v); msg != "" {
			return ToolArguments{}, msg
		}
		out.Temperature = v.(float64)
	}

	if v, present := args[argMaxTokens]; present {
		n, msg := validateMaxTokens(v)
		if msg != "" {
			return ToolArguments{}, msg
		}
		out.MaxTokens = n
	}

	return out, ""
}

// describeValue names the JSON type of v for error messages.
func describeValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return fmt.Sprintf("string %q", x)
	case float64:
		return fmt.Sprintf("%g", x)
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
