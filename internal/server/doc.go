// Package server implements the MCP (Model Context Protocol) server for image analysis.
//
// This package provides a JSON-RPC 2.0 server that exposes a single tool,
// read_image, which sends a local image and a prompt to a vision-language
// model and returns the model's answer.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # The read_image Pipeline
//
// Each call walks a fixed sequence of states:
//
//	ReceivedArgs -> ArgsValidated -> FileValidated -> Encoded
//	  -> RemoteCallSucceeded -> ResponseReady
//
// Any step may move to Error instead. Argument problems produce a
// VALIDATION_ERROR envelope; everything else produces UNKNOWN_ERROR. The
// vision API is called at most once per request.
//
// # Response Format
//
// Tool results are a single text content item holding a JSON envelope:
//
//	{"success": true, "data": "...", "timestamp": 1700000000}
//	{"success": false, "error": "...", "error_code": "UNKNOWN_ERROR", "timestamp": 1700000000}
//
// # Concurrency
//
// tools/call requests run in their own goroutines, bounded by
// Options.MaxConcurrentCalls. Responses are written under a mutex and may
// arrive out of request order; clients match them by id.
package server
