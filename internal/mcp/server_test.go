package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcpgo "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/formlink-go/internal/config"
	"github.com/wagiedev/formlink-go/internal/enginetest"
	"github.com/wagiedev/formlink-go/internal/session"
)

func newTestServer(t *testing.T, engineOpts enginetest.Options) (*Server, *session.Session) {
	t.Helper()

	sess, err := session.Open(context.Background(), &config.Options{
		Transport: enginetest.NewTransport(engineOpts),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = sess.Close() })

	return NewServer(nil, sess, "formlink", "test"), sess
}

func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()

	require.NotNil(t, result)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(*mcpgo.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])

	return text.Text
}

func TestServerMetadata(t *testing.T) {
	server, _ := newTestServer(t, enginetest.Options{})

	require.Equal(t, "formlink", server.Name())
	require.Equal(t, "test", server.Version())

	var names []string
	for _, tool := range server.Tools() {
		names = append(names, tool.Name)
		require.NotEmpty(t, tool.Description)
	}

	require.Equal(t, []string{ToolEval, ToolRead, ToolStatus, ToolWrite}, names)
}

func TestServerCallTool_Eval(t *testing.T) {
	server, _ := newTestServer(t, enginetest.Options{})

	result, err := server.CallTool(context.Background(), ToolEval, map[string]any{
		"statements": "Local F = 1+2;\nLocal G = x+y;\n.sort",
		"names":      []string{"F", "G"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	require.JSONEq(t, `{"F":"3","G":"x+y"}`, resultText(t, result))
}

func TestServerCallTool_WriteThenRead(t *testing.T) {
	server, sess := newTestServer(t, enginetest.Options{})
	ctx := context.Background()

	result, err := server.CallTool(ctx, ToolWrite, map[string]any{"statements": "Local F = 7;\n.sort"})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "ok (seq 1)", resultText(t, result))

	result, err = server.CallTool(ctx, ToolRead, map[string]any{"names": []string{"F"}})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	require.JSONEq(t, `{"F":"7"}`, resultText(t, result))

	require.Equal(t, uint64(2), sess.Sequence())
}

func TestServerCallTool_EngineError(t *testing.T) {
	server, _ := newTestServer(t, enginetest.Options{})
	ctx := context.Background()

	result, err := server.CallTool(ctx, ToolWrite, map[string]any{"statements": "Local F = 1@;"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = server.CallTool(ctx, ToolRead, map[string]any{"names": []string{"F"}})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, resultText(t, result), "Illegal character")

	result, err = server.CallTool(ctx, ToolStatus, nil)
	require.NoError(t, err)

	var status Status
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &status))
	require.Contains(t, status.Error, "Illegal character")
}

func TestServerCallTool_InvalidInput(t *testing.T) {
	server, sess := newTestServer(t, enginetest.Options{})
	ctx := context.Background()

	tests := []struct {
		name  string
		tool  string
		input map[string]any
		want  string
	}{
		{name: "unknown tool", tool: "form_missing", want: "tool not found"},
		{name: "empty statements", tool: ToolWrite, input: map[string]any{"statements": " "}, want: "must not be empty"},
		{name: "no names", tool: ToolRead, input: map[string]any{"names": []string{}}, want: "must not be empty"},
		{name: "wrong type", tool: ToolRead, input: map[string]any{"names": "F"}, want: "invalid arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := server.CallTool(ctx, tt.tool, tt.input)
			require.NoError(t, err)
			require.True(t, result.IsError)
			require.Contains(t, resultText(t, result), tt.want)
		})
	}

	require.NoError(t, sess.Err())
	require.Zero(t, sess.Sequence())
}

func TestServerCallTool_Status(t *testing.T) {
	server, sess := newTestServer(t, enginetest.Options{})

	require.Eventually(t, func() bool {
		return sess.Banner() != ""
	}, time.Second, time.Millisecond)

	result, err := server.CallTool(context.Background(), ToolStatus, map[string]any{})
	require.NoError(t, err)

	var status Status
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &status))
	require.Equal(t, sess.ID(), status.SessionID)
	require.Equal(t, enginetest.DefaultBanner, status.Banner)
	require.Empty(t, status.Error)
}

func TestServer_InMemoryTransport(t *testing.T) {
	server, _ := newTestServer(t, enginetest.Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	serverTransport, clientTransport := mcpgo.NewInMemoryTransports()

	serverSession, err := server.Connect(ctx, serverTransport)
	require.NoError(t, err)

	defer serverSession.Close()

	client := mcpgo.NewClient(&mcpgo.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	clientSession, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	defer clientSession.Close()

	tools, err := clientSession.ListTools(ctx, nil)
	require.NoError(t, err)
	require.Len(t, tools.Tools, 4)

	result, err := clientSession.CallTool(ctx, &mcpgo.CallToolParams{
		Name: ToolEval,
		Arguments: map[string]any{
			"statements": "#$n = 40+2;",
			"names":      []string{"$n"},
		},
	})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	require.JSONEq(t, `{"$n":"42"}`, resultText(t, result))
}
