// Package api provides the development chat backend: session management,
// the streaming chat endpoint and an MCP endpoint over stored sessions.
package api

import (
	"log/slog"

	"github.com/papercomputeco/agentconsole/pkg/agent"
	"github.com/papercomputeco/agentconsole/pkg/eventstream"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Agent answers chat requests. Defaults to agent.New with default tools.
	Agent *agent.Agent

	// Publisher announces persisted turns. Optional.
	Publisher eventstream.Publisher

	// NumWorkers is the number of persistence workers (defaults to 3).
	NumWorkers uint

	// Logger defaults to a no-op logger.
	Logger *slog.Logger
}
