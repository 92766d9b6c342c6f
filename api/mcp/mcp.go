// Package mcp provides an MCP (Model Context Protocol) server exposing the
// stored chat sessions as tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/agentconsole/pkg/logger"
	"github.com/papercomputeco/agentconsole/pkg/storage"
	"github.com/papercomputeco/agentconsole/pkg/utils"
)

type Config struct {
	// Driver reads the stored sessions.
	Driver storage.Driver

	// Logger defaults to a no-op logger.
	Logger *slog.Logger
}

type Server struct {
	config    Config
	logger    *slog.Logger
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the session tools.
func NewServer(c Config) (*Server, error) {
	if c.Driver == nil {
		return nil, errors.New("storage driver is required")
	}

	s := &Server{
		config: c,
		logger: c.Logger,
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "agentconsole",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        listSessionsToolName,
		Description: listSessionsDescription,
	}, s.handleListSessions)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        sessionHistoryToolName,
		Description: sessionHistoryDescription,
	}, s.handleSessionHistory)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations.
	// Plain JSON responses keep it usable behind the fiber adaptor, which
	// buffers whole responses.
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless:    true,
			JSONResponse: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
