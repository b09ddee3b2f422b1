package formlink

import (
	"log/slog"

	internalmcp "github.com/wagiedev/formlink-go/internal/mcp"
)

// Version is reported by the MCP server.
const Version = "0.1.0"

// MCPServer exposes a Session as Model Context Protocol tools:
// form_write, form_read, form_eval and form_status.
type MCPServer = internalmcp.Server

// MCPStatus is the form_status tool result.
type MCPStatus = internalmcp.Status

// MCP tool names.
const (
	MCPToolWrite  = internalmcp.ToolWrite
	MCPToolRead   = internalmcp.ToolRead
	MCPToolEval   = internalmcp.ToolEval
	MCPToolStatus = internalmcp.ToolStatus
)

// NewMCPServer creates an MCP server driving s. Serve it with Run:
//
//	server := formlink.NewMCPServer(s, logger)
//	err := server.Run(ctx, &mcp.StdioTransport{})
func NewMCPServer(s Session, logger *slog.Logger) *MCPServer {
	return internalmcp.NewServer(logger, s, "formlink", Version)
}
