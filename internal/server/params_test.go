package server

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseArguments(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantLen int
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"null", "null", 0, false},
		{"object", `{"image_path":"a.png","prompt":"p"}`, 2, false},
		{"array", `["a.png"]`, 0, true},
		{"string", `"a.png"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := parseArguments(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error: got %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(args) != tt.wantLen {
				t.Errorf("len: got %d, want %d", len(args), tt.wantLen)
			}
		})
	}
}

func TestValidateRequired(t *testing.T) {
	keys := []string{"image_path", "prompt"}

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"all present", map[string]interface{}{"image_path": "a", "prompt": "b"}, ""},
		{"empty strings count as present", map[string]interface{}{"image_path": "", "prompt": ""}, ""},
		{"missing prompt", map[string]interface{}{"image_path": "a"}, "missing required parameters: prompt"},
		{"null prompt", map[string]interface{}{"image_path": "a", "prompt": nil}, "missing required parameters: prompt"},
		{"both missing", map[string]interface{}{}, "missing required parameters: image_path, prompt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validateRequired(tt.args, keys); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateTemperature(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		ok    bool
	}{
		{"zero", 0.0, true},
		{"default", 0.8, true},
		{"upper bound", 2.0, true},
		{"too high", 3.5, false},
		{"negative", -0.1, false},
		{"string", "0.5", false},
		{"bool", true, false},
		{"null", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := validateTemperature(tt.value)
			if (msg == "") != tt.ok {
				t.Errorf("validateTemperature(%v) = %q, want ok=%v", tt.value, msg, tt.ok)
			}
			if !tt.ok && !strings.Contains(msg, "0.0 and 2.0") {
				t.Errorf("message should describe the range: %q", msg)
			}
		})
	}
}

func TestValidateMaxTokens(t *testing.T) {
	tests := []struct {
		value interface{}
		want  int
		ok    bool
	}{
		{1000.0, 1000, true},
		{1.0, 1, true},
		{1000000.0, 1000000, true},
		{0.0, 0, false},
		{-5.0, 0, false},
		{1000001.0, 0, false},
		{10.5, 0, false},
		{"100", 0, false},
		{nil, 0, false},
	}

	for _, tt := range tests {
		n, msg := validateMaxTokens(tt.value)
		if (msg == "") != tt.ok || n != tt.want {
			t.Errorf("validateMaxTokens(%v) = (%d, %q), want (%d, ok=%v)", tt.value, n, msg, tt.want, tt.ok)
		}
	}
}

func TestValidateArguments(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ToolArguments
		wantMsg string
	}{
		{
			"defaults applied",
			`{"image_path":"a.png","prompt":"describe"}`,
			ToolArguments{ImagePath: "a.png", Prompt: "describe", Temperature: 0.8, MaxTokens: 1000},
			"",
		},
		{
			"explicit values",
			`{"image_path":"a.png","prompt":"describe","temperature":0,"max_tokens":50}`,
			ToolArguments{ImagePath: "a.png", Prompt: "describe", Temperature: 0, MaxTokens: 50},
			"",
		},
		{"missing prompt", `{"image_path":"a.png"}`, ToolArguments{}, "missing required parameters: prompt"},
		{"path not a string", `{"image_path":42,"prompt":"p"}`, ToolArguments{}, "image_path must be a string"},
		{"prompt not a string", `{"image_path":"a","prompt":["p"]}`, ToolArguments{}, "prompt must be a string"},
		{"temperature too high", `{"image_path":"a","prompt":"p","temperature":3.5}`, ToolArguments{}, "temperature must be between"},
		{"temperature null", `{"image_path":"a","prompt":"p","temperature":null}`, ToolArguments{}, "temperature must be a number"},
		{"negative max_tokens", `{"image_path":"a","prompt":"p","max_tokens":-1}`, ToolArguments{}, "max_tokens must be between"},
		// Required keys are reported before temperature.
		{"missing and bad temperature", `{"image_path":"a","temperature":9}`, ToolArguments{}, "missing required parameters: prompt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := parseArguments(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("parseArguments failed: %v", err)
			}
			got, msg := validateArguments(args)
			if tt.wantMsg == "" {
				if msg != "" {
					t.Fatalf("unexpected message: %q", msg)
				}
				if got != tt.want {
					t.Errorf("got %+v, want %+v", got, tt.want)
				}
				return
			}
			if !strings.Contains(msg, tt.wantMsg) {
				t.Errorf("message %q should contain %q", msg, tt.wantMsg)
			}
		})
	}
}
