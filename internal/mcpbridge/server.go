// Package mcpbridge exposes the deployment error mailbox as MCP tools so
// that coding agents can read and acknowledge deployment failures.
package mcpbridge

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"git.home.luguber.info/inful/selfheal/internal/logfields"
	"git.home.luguber.info/inful/selfheal/internal/mailbox"
)

// Tool names.
const (
	ToolReadLogs  = "read_deployment_logs"
	ToolClearLogs = "clear_error_logs"
)

// Server is the MCP server for the mailbox.
type Server struct {
	mcpServer *server.MCPServer
	mb        *mailbox.Mailbox
}

// NewServer creates a server over mb.
func NewServer(mb *mailbox.Mailbox, version string) *Server {
	s := server.NewMCPServer(
		"selfheal-mailbox",
		version,
		server.WithToolCapabilities(true),
	)
	srv := &Server{mcpServer: s, mb: mb}
	srv.registerTools()
	return srv
}

func (s *Server) registerTools() {
	readTool := mcp.NewTool(ToolReadLogs,
		mcp.WithDescription("Reads the latest deployment error logs. Use this tool when you need to know why a deployment failed."),
	)
	clearTool := mcp.NewTool(ToolClearLogs,
		mcp.WithDescription("Clears the error logs after a fix has been applied."),
	)
	s.mcpServer.AddTool(readTool, s.handleRead)
	s.mcpServer.AddTool(clearTool, s.handleClear)
}

// Run serves MCP over stdin/stdout until ctx ends or stdin closes.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	slog.Info("Serving mailbox tools over stdio", logfields.Path(s.mb.Path()))
	return server.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
}

func (s *Server) handleRead(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.mb.ReadReport()), nil
}

func (s *Server) handleClear(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report := s.mb.ClearReport()
	slog.Info("Mailbox clear requested", logfields.Path(s.mb.Path()), slog.String("result", report))
	return mcp.NewToolResultText(report), nil
}
