package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	if len(tools) != 1 {
		t.Fatalf("expected exactly one tool, got %d", len(tools))
	}
	if tools[0].Name != "read_image" {
		t.Errorf("tool name: got %s, want read_image", tools[0].Name)
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema.Type != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema.Type)
			}
			if tool.InputSchema.Properties == nil {
				t.Error("InputSchema properties is nil")
			}
		})
	}
}

func TestToolDefinitions_Required(t *testing.T) {
	tool := GetToolDefinitions()[0]

	want := map[string]bool{"image_path": true, "prompt": true}
	for _, r := range tool.InputSchema.Required {
		if !want[r] {
			t.Errorf("unexpected required parameter %q", r)
		}
		delete(want, r)
	}
	for missing := range want {
		t.Errorf("read_image should require '%s' parameter", missing)
	}
}

func TestToolDefinitions_OptionalDefaults(t *testing.T) {
	props := GetToolDefinitions()[0].InputSchema.Properties

	temp, ok := props["temperature"].(map[string]interface{})
	if !ok {
		t.Fatal("temperature property should exist and be a map")
	}
	if temp["type"] != "number" {
		t.Errorf("temperature type: got %v", temp["type"])
	}
	if temp["default"] != 0.8 || temp["minimum"] != 0.0 || temp["maximum"] != 2.0 {
		t.Errorf("temperature bounds: got default=%v minimum=%v maximum=%v",
			temp["default"], temp["minimum"], temp["maximum"])
	}

	maxTokens, ok := props["max_tokens"].(map[string]interface{})
	if !ok {
		t.Fatal("max_tokens property should exist and be a map")
	}
	if maxTokens["type"] != "integer" || maxTokens["default"] != 1000 {
		t.Errorf("max_tokens: got %v", maxTokens)
	}
}

func TestToolDefinitions_SchemaJSON(t *testing.T) {
	data, err := json.Marshal(GetToolDefinitions()[0])
	if err != nil {
		t.Fatalf("marshal tool: %v", err)
	}

	var decoded struct {
		Name        string `json:"name"`
		InputSchema struct {
			Type       string                     `json:"type"`
			Properties map[string]json.RawMessage `json:"properties"`
			Required   []string                   `json:"required"`
		} `json:"inputSchema"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal tool: %v", err)
	}
	if decoded.Name != "read_image" || decoded.InputSchema.Type != "object" {
		t.Errorf("got %s", data)
	}
	if len(decoded.InputSchema.Properties) != 4 {
		t.Errorf("expected 4 properties, got %d", len(decoded.InputSchema.Properties))
	}
	if len(decoded.InputSchema.Required) != 2 {
		t.Errorf("required: got %v", decoded.InputSchema.Required)
	}
}

func TestHandleToolsList(t *testing.T) {
	s := newTestServer(nil)
	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})

	if resp == nil {
		t.Fatal("handleToolsList returned nil")
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %v", resp.Error)
	}

	result, ok := resp.Result.(mcp.ListToolsResult)
	if !ok {
		t.Fatalf("Result should be mcp.ListToolsResult, got %T", resp.Result)
	}
	if len(result.Tools) != len(GetToolDefinitions()) {
		t.Errorf("Tool count: got %d, want %d", len(result.Tools), len(GetToolDefinitions()))
	}
}
