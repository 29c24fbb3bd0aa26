package response

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

var fixed = Builder{Now: func() time.Time { return time.Unix(1700000000, 0) }}

func decode(t *testing.T, e Envelope) map[string]interface{} {
	t.Helper()
	s, err := e.JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, s)
	}
	return m
}

func TestSuccess(t *testing.T) {
	m := decode(t, fixed.Success("a red bicycle"))

	if m["success"] != true {
		t.Errorf("success: got %v", m["success"])
	}
	if m["data"] != "a red bicycle" {
		t.Errorf("data: got %v", m["data"])
	}
	if m["timestamp"] != float64(1700000000) {
		t.Errorf("timestamp: got %v", m["timestamp"])
	}
	for _, key := range []string{"error", "error_code"} {
		if _, ok := m[key]; ok {
			t.Errorf("success envelope should not contain %q", key)
		}
	}
}

func TestSuccess_EmptyDataIsKept(t *testing.T) {
	m := decode(t, fixed.Success(""))
	v, ok := m["data"]
	if !ok {
		t.Fatal("data key missing for empty result")
	}
	if v != "" {
		t.Errorf("data: got %v, want empty string", v)
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		env      Envelope
		wantCode string
		wantMsg  string
	}{
		{"explicit code", fixed.Error("boom", CodeUnknown), "UNKNOWN_ERROR", "boom"},
		{"default code", fixed.Error("boom", ""), "UNKNOWN_ERROR", "boom"},
		{"validation", fixed.ValidationError("missing required parameters: prompt"),
			"VALIDATION_ERROR", "missing required parameters: prompt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := decode(t, tt.env)
			if m["success"] != false {
				t.Errorf("success: got %v", m["success"])
			}
			if m["error_code"] != tt.wantCode {
				t.Errorf("error_code: got %v, want %s", m["error_code"], tt.wantCode)
			}
			if m["error"] != tt.wantMsg {
				t.Errorf("error: got %v, want %s", m["error"], tt.wantMsg)
			}
			if _, ok := m["data"]; ok {
				t.Error("error envelope should not contain data")
			}
			if m["timestamp"] != float64(1700000000) {
				t.Errorf("timestamp: got %v", m["timestamp"])
			}
		})
	}
}

func TestJSON_LeavesTextUnescaped(t *testing.T) {
	s, err := fixed.Success("图片里有一只猫 <b>&</b> ✓").JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	if !strings.Contains(s, "图片里有一只猫 <b>&</b> ✓") {
		t.Errorf("text should be emitted verbatim: %s", s)
	}
	if strings.HasSuffix(s, "\n") {
		t.Error("output should not end with a newline")
	}
}

func TestPackageConstructors_StampCurrentTime(t *testing.T) {
	before := time.Now().Unix()
	env := ValidationError("bad")
	after := time.Now().Unix()

	if env.Timestamp < before || env.Timestamp > after {
		t.Errorf("timestamp %d not within [%d, %d]", env.Timestamp, before, after)
	}
	if env.Code != CodeValidation || env.Success {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if env := Success(map[string]int{"n": 1}); !env.Success {
		t.Error("Success should set success")
	}
	if env := Error("x", ""); env.Code != CodeUnknown {
		t.Errorf("Error default code: got %s", env.Code)
	}
}
