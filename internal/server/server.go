package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ironsheep/doclayout-mcp/internal/imaging"
	"github.com/ironsheep/doclayout-mcp/internal/layout"
	"github.com/ironsheep/doclayout-mcp/internal/render"
	"go.uber.org/zap"
)

// maxRequestBytes bounds one JSON-RPC line. Raw BGR pages and output tensors
// travel inline, so this is far above what plain tool calls need.
const maxRequestBytes = 64 * 1024 * 1024

// Server handles MCP protocol communication
type Server struct {
	cache    *imaging.Cache
	pipeline *layout.Pipeline
	overlay  *render.Overlay
	log      *zap.Logger
	version  string

	in  io.Reader
	out io.Writer
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

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the logger. It must not write to stdout.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithOverlay sets the renderer used by layout_render and layout_categories.
func WithOverlay(o *render.Overlay) Option {
	return func(s *Server) {
		if o != nil {
			s.overlay = o
		}
	}
}

// WithVersion sets the version reported during initialize.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithIO replaces stdin/stdout, mostly for tests.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.in = in
		s.out = out
	}
}

// New creates a server around a configured layout pipeline. A nil pipeline
// gets the default parameters and no inference backend, which leaves
// layout_analyze reporting a failed status while the other tools work.
func New(p *layout.Pipeline, opts ...Option) *Server {
	if p == nil {
		// Without a backend there is no class count to validate.
		p, _ = layout.NewPipeline(nil, layout.DefaultConfig())
	}
	s := &Server{
		cache:    imaging.NewCache(),
		pipeline: p,
		overlay:  render.NewOverlay(render.DefaultOptions()),
		log:      zap.NewNop(),
		version:  "dev",
		in:       os.Stdin,
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves requests until the input stream ends or ctx is cancelled.
// Requests are handled one at a time, in arrival order.
//
// Reading happens on a separate goroutine so that cancellation is noticed
// while stdin is idle. That goroutine stays blocked in Read until the input
// is closed; for stdin that is process exit.
func (s *Server) Run(ctx context.Context) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go s.readLines(ctx, lines, readErr)

	encoder := json.NewEncoder(s.out)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("scanner error: %w", err)
				}
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			var req MCPRequest
			if err := json.Unmarshal(line, &req); err != nil {
				s.log.Warn("failed to parse request", zap.Error(err))
				continue
			}

			resp := s.handleRequest(ctx, &req)
			if resp != nil {
				if err := encoder.Encode(resp); err != nil {
					s.log.Error("failed to encode response", zap.Error(err))
				}
			}
		}
	}
}

// readLines feeds non-empty input lines to lines and closes it at end of
// input. Exactly one value is sent on errc before lines is closed.
func (s *Server) readLines(ctx context.Context, lines chan<- []byte, errc chan<- error) {
	defer close(lines)

	scanner := bufio.NewScanner(s.in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxRequestBytes)

	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		// The scanner reuses its buffer on the next Scan.
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case lines <- line:
		case <-ctx.Done():
			errc <- ctx.Err()
			return
		}
	}
	errc <- scanner.Err()
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
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "doclayout-mcp",
				"version": s.version,
			},
		},
	}
}
