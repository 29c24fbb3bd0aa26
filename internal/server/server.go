package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Defaults for Options.
const (
	DefaultName               = "glm-vision-mcp"
	DefaultMaxConcurrentCalls = 4

	maxRequestSize = 1024 * 1024
)

// Server handles MCP protocol communication
type Server struct {
	invoker *Invoker
	logger  *slog.Logger
	name    string
	version string
	calls   *semaphore.Weighted

	mu  sync.Mutex // guards enc
	enc *json.Encoder
}

// Options configures a Server.
type Options struct {
	// Name and Version are reported as serverInfo during initialize.
	Name    string
	Version string

	// MaxConcurrentCalls bounds tools/call requests running at once.
	MaxConcurrentCalls int

	Logger *slog.Logger
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSON-RPC error codes used by the server.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeToolFailed     = -32000
)

// New creates a new MCP server instance serving inv.
func New(inv *Invoker, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.MaxConcurrentCalls <= 0 {
		opts.MaxConcurrentCalls = DefaultMaxConcurrentCalls
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		invoker: inv,
		logger:  opts.Logger,
		name:    opts.Name,
		version: opts.Version,
		calls:   semaphore.NewWeighted(int64(opts.MaxConcurrentCalls)),
	}
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads newline-delimited JSON-RPC requests from r and writes responses
// to w until r is exhausted or ctx is cancelled.
//
// tools/call requests run concurrently, bounded by MaxConcurrentCalls, and
// their responses may be written out of order. All other methods are
// answered inline. Serve waits for in-flight calls before returning.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.mu.Lock()
	s.enc = json.NewEncoder(w)
	s.enc.SetEscapeHTML(false)
	s.mu.Unlock()

	lines, scanErr := scanLines(ctx, r)
	g, gctx := errgroup.WithContext(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down", "reason", ctx.Err())
			// The reader may be blocked on stdin; only in-flight calls are awaited.
			return g.Wait()
		case line, ok := <-lines:
			if !ok {
				werr := g.Wait()
				if err := <-scanErr; err != nil {
					return fmt.Errorf("scanner error: %w", err)
				}
				return werr
			}
			s.dispatch(gctx, g, line)
		}
	}
}

// dispatch decodes one request line and either answers it inline or hands a
// tools/call to the worker group.
func (s *Server) dispatch(ctx context.Context, g *errgroup.Group, line []byte) {
	var req MCPRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Warn("failed to parse request", "error", err)
		s.write(s.errorResponse(nil, codeParseError, "Parse error", err.Error()))
		return
	}

	if req.Method != "tools/call" {
		if resp := s.handleRequest(ctx, &req); resp != nil {
			s.write(resp)
		}
		return
	}

	if err := s.calls.Acquire(ctx, 1); err != nil {
		s.write(s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error()))
		return
	}
	g.Go(func() error {
		defer s.calls.Release(1)
		s.write(s.handleToolsCall(ctx, &req))
		return nil
	})
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		if req.ID == nil {
			// Unknown notifications are ignored.
			return nil
		}
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    codeMethodNotFound,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	s.logger.Info("client initialized", "ready", s.invoker.Ready())
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": mcp.Implementation{
				Name:    s.name,
				Version: s.version,
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  mcp.ListToolsResult{Tools: GetToolDefinitions()},
	}
}

func (s *Server) write(resp *MCPResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(resp); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// scanLines feeds non-empty lines from r into the returned channel, closing
// it at EOF. The scanner's final error is delivered on the second channel.
func scanLines(ctx context.Context, r io.Reader) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		// Increase buffer size for large requests
		scanner.Buffer(make([]byte, 0, 64*1024), maxRequestSize)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			select {
			case lines <- append([]byte(nil), line...):
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		errc <- scanner.Err()
	}()

	return lines, errc
}
