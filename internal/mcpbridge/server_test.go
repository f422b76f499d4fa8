package mcpbridge

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/selfheal/internal/mailbox"
)

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestTools(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployment_errors.log")
	mb := mailbox.New(path)
	s := NewServer(mb, "test")
	ctx := context.Background()

	res, err := s.handleRead(ctx, mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.Equal(t, "No error logs found in "+path+". System appears healthy.", resultText(t, res))

	require.NoError(t, mb.Post("Type error: ./app/page.tsx:5:1"))
	res, err = s.handleRead(ctx, mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.Equal(t, "LATEST ERROR LOGS:\nType error: ./app/page.tsx:5:1\n", resultText(t, res))

	res, err = s.handleClear(ctx, mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Logs cleared successfully.", resultText(t, res))

	res, err = s.handleClear(ctx, mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.Equal(t, "No logs to clear.", resultText(t, res))
}

func TestRegisteredTools(t *testing.T) {
	s := NewServer(mailbox.New(filepath.Join(t.TempDir(), "x.log")), "test")
	resp := s.mcpServer.HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), ToolReadLogs)
	assert.Contains(t, string(data), ToolClearLogs)
}
