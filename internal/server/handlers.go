package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ironsheep/glm-vision-mcp/internal/response"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke ("read_image").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool's envelope in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON envelope>"}]
//	}
//
// Argument, file and remote failures are reported inside the envelope, not as
// JSON-RPC errors. Only malformed params (-32602) and unknown tools (-32000)
// produce JSON-RPC error responses.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	env, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	text, err := env.JSON()
	if err != nil {
		s.logger.Error("failed to serialize envelope", "tool", params.Name, "error", err)
		text = fallbackEnvelope(err)
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  mcp.NewToolResultText(text),
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (response.Envelope, error) {
	switch name {
	case ToolReadImage:
		return s.invoker.Invoke(ctx, args), nil
	default:
		return response.Envelope{}, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// fallbackEnvelope is used when an envelope cannot be serialized, which only
// happens if a success payload holds an unencodable value.
func fallbackEnvelope(cause error) string {
	text, err := response.Error("failed to serialize response: "+cause.Error(), response.CodeUnknown).JSON()
	if err != nil {
		return `{"success":false,"error":"failed to serialize response","error_code":"UNKNOWN_ERROR","timestamp":0}`
	}
	return text
}
