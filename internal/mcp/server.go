package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Session is the part of a formlink session the tools drive.
type Session interface {
	ID() string
	Write(ctx context.Context, src string) error
	ReadMany(ctx context.Context, names ...string) ([]string, error)
	Sequence() uint64
	Banner() string
	Err() error
}

// Server wraps the official MCP SDK server and keeps its own tool registry
// for direct invocation.
type Server struct {
	log     *slog.Logger
	name    string
	version string
	session Session
	server  *mcp.Server

	// callMu serialises tool calls on the session.
	callMu sync.Mutex

	mu    sync.RWMutex
	tools map[string]*registeredTool
}

type registeredTool struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// NewServer creates a server with the formlink tools bound to session.
func NewServer(log *slog.Logger, session Session, name, version string) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		log:     log.With("component", "mcp"),
		name:    name,
		version: version,
		session: session,
		server:  mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		tools:   make(map[string]*registeredTool, 4),
	}

	s.registerTools()

	return s
}

// AddTool registers a tool on the MCP server and in the local registry.
func (s *Server) AddTool(tool *mcp.Tool, handler mcp.ToolHandler) {
	s.mu.Lock()
	s.tools[tool.Name] = &registeredTool{tool: tool, handler: handler}
	s.mu.Unlock()

	s.server.AddTool(tool, handler)
}

// Name returns the server name.
func (s *Server) Name() string {
	return s.name
}

// Version returns the server version.
func (s *Server) Version() string {
	return s.version
}

// Tools returns the registered tools sorted by name.
func (s *Server) Tools() []*mcp.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]*mcp.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t.tool)
	}

	slices.SortFunc(tools, func(a, b *mcp.Tool) int {
		return strings.Compare(a.Name, b.Name)
	})

	return tools
}

// CallTool executes a tool by name without going through a transport.
// Tool failures are reported in the result, not as an error.
func (s *Server) CallTool(ctx context.Context, name string, input map[string]any) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	t, exists := s.tools[name]
	s.mu.RUnlock()

	if !exists {
		return ErrorResult("tool not found: " + name), nil
	}

	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal input for %s: %w", name, err)
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      name,
			Arguments: data,
		},
	}

	return t.handler(ctx, req)
}

// Run serves the tools on transport until the client disconnects or ctx
// is cancelled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.log.Info("Serving MCP", "name", s.name, "session_id", s.session.ID())

	if err := s.server.Run(ctx, transport); err != nil {
		return fmt.Errorf("serve mcp: %w", err)
	}

	return nil
}

// Connect serves the tools on one transport and returns immediately.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}
