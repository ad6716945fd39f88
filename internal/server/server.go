package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/engrave-prep-mcp/internal/config"
	"github.com/ironsheep/engrave-prep-mcp/internal/pipeline"
)

// Version is reported in the initialize response. Set by main.
var Version = "dev"

// Server handles MCP protocol communication
type Server struct {
	cfg  *config.Config
	log  logrus.FieldLogger
	pipe *pipeline.Orchestrator

	outMu sync.Mutex
	out   *json.Encoder
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

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a new MCP server instance. A nil cfg means config.Default().
func New(cfg *config.Config, log logrus.FieldLogger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{
		cfg: cfg,
		log: log.WithField("component", "server"),
	}

	opts := cfg.PipelineOptions(log)
	opts.OnPreview = s.previewReady
	opts.OnError = s.previewFailed
	s.pipe = pipeline.New(opts)
	return s
}

// Close stops background preview rendering.
func (s *Server) Close() {
	s.pipe.Close()
}

// Run starts the MCP server, reading from stdin and writing to stdout
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads newline-delimited requests from r and writes responses and
// notifications to w until r is exhausted.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	s.outMu.Lock()
	s.out = json.NewEncoder(w)
	s.outMu.Unlock()

	defer func() {
		s.outMu.Lock()
		s.out = nil
		s.outMu.Unlock()
	}()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.WithError(err).Warn("Failed to parse request")
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			s.write(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// write encodes one message. Messages are dropped when no client is attached.
func (s *Server) write(v interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.out == nil {
		return
	}
	if err := s.out.Encode(v); err != nil {
		s.log.WithError(err).Error("Failed to encode response")
	}
}

// notify sends an MCP log message notification.
func (s *Server) notify(level string, data interface{}) {
	s.write(&MCPNotification{
		JSONRPC: "2.0",
		Method:  "notifications/message",
		Params: map[string]interface{}{
			"level":  level,
			"logger": "engrave-prep",
			"data":   data,
		},
	})
}

func (s *Server) previewReady(p *pipeline.Preview) {
	s.notify("info", map[string]interface{}{
		"event":       "preview_ready",
		"stage":       p.Stage,
		"generation":  p.Generation,
		"duration_ms": p.Duration.Milliseconds(),
	})
}

func (s *Server) previewFailed(stage pipeline.Stage, err error) {
	s.notify("error", map[string]interface{}{
		"event": "preview_failed",
		"stage": stage,
		"error": err.Error(),
	})
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	s.log.WithField("method", req.Method).Debug("Request received")

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
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
				"tools":   map[string]interface{}{},
				"logging": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "engrave-prep-mcp",
				"version": Version,
			},
		},
	}
}
