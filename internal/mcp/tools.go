package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names.
const (
	ToolWrite  = "form_write"
	ToolRead   = "form_read"
	ToolEval   = "form_eval"
	ToolStatus = "form_status"
)

type writeInput struct {
	Statements string `json:"statements"`
}

type readInput struct {
	Names []string `json:"names"`
}

type evalInput struct {
	Statements string   `json:"statements"`
	Names      []string `json:"names"`
}

// Status is the form_status result.
type Status struct {
	SessionID string `json:"session_id"`
	Sequence  uint64 `json:"sequence"`
	Banner    string `json:"banner,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) registerTools() {
	s.AddTool(NewTool(ToolWrite,
		"Send a block of FORM statements to the engine. "+
			"An error in the block is reported by the next call.",
		SimpleSchema(map[string]string{"statements": "string"}),
	), s.handleWrite)

	s.AddTool(NewTool(ToolRead,
		"Print expressions ($-variables, `preprocessor' variables) and return their values by name.",
		SimpleSchema(map[string]string{"names": "[]string"}),
	), s.handleRead)

	s.AddTool(NewTool(ToolEval,
		"Send FORM statements, then return the values of the given names.",
		SimpleSchema(map[string]string{"statements": "string", "names": "[]string"}),
	), s.handleEval)

	s.AddTool(NewTool(ToolStatus,
		"Report the session ID, last sequence number, engine banner and fatal error.",
		&jsonschema.Schema{Type: "object"},
	), s.handleStatus)
}

func (s *Server) handleWrite(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in writeInput
	if err := DecodeArguments(req, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}

	if strings.TrimSpace(in.Statements) == "" {
		return ErrorResult("statements must not be empty"), nil
	}

	s.callMu.Lock()
	defer s.callMu.Unlock()

	if err := s.session.Write(ctx, in.Statements); err != nil {
		return s.sessionError(ToolWrite, err), nil
	}

	return TextResult(fmt.Sprintf("ok (seq %d)", s.session.Sequence())), nil
}

func (s *Server) handleRead(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in readInput
	if err := DecodeArguments(req, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}

	s.callMu.Lock()
	defer s.callMu.Unlock()

	return s.read(ctx, ToolRead, in.Names), nil
}

func (s *Server) handleEval(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in evalInput
	if err := DecodeArguments(req, &in); err != nil {
		return ErrorResult(err.Error()), nil
	}

	s.callMu.Lock()
	defer s.callMu.Unlock()

	if strings.TrimSpace(in.Statements) != "" {
		if err := s.session.Write(ctx, in.Statements); err != nil {
			return s.sessionError(ToolEval, err), nil
		}
	}

	return s.read(ctx, ToolEval, in.Names), nil
}

func (s *Server) handleStatus(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := Status{
		SessionID: s.session.ID(),
		Sequence:  s.session.Sequence(),
		Banner:    s.session.Banner(),
	}

	if err := s.session.Err(); err != nil {
		status.Error = err.Error()
	}

	return jsonResult(status), nil
}

// read prints names and returns them as a JSON object. Caller holds callMu.
func (s *Server) read(ctx context.Context, tool string, names []string) *mcp.CallToolResult {
	if len(names) == 0 {
		return ErrorResult("names must not be empty")
	}

	values, err := s.session.ReadMany(ctx, names...)
	if err != nil {
		return s.sessionError(tool, err)
	}

	result := make(map[string]string, len(names))
	for i, name := range names {
		result[name] = values[i]
	}

	return jsonResult(result)
}

func (s *Server) sessionError(tool string, err error) *mcp.CallToolResult {
	s.log.Warn("Tool call failed", "tool", tool, "error", err)

	return ErrorResult(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrorResult(fmt.Sprintf("marshal result: %v", err))
	}

	return TextResult(string(data))
}
