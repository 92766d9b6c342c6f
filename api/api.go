package api

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/agentconsole/api/mcp"
	"github.com/papercomputeco/agentconsole/api/worker"
	"github.com/papercomputeco/agentconsole/pkg/agent"
	"github.com/papercomputeco/agentconsole/pkg/chat/reducer"
	"github.com/papercomputeco/agentconsole/pkg/logger"
	"github.com/papercomputeco/agentconsole/pkg/storage"
)

// Server is the development chat backend.
type Server struct {
	config  Config
	storer  storage.Driver
	agent   *agent.Agent
	reducer *reducer.Reducer
	pool    *worker.Pool
	logger  *slog.Logger
	app     *fiber.App
}

// NewServer creates a new API server.
// The storer is injected so that the caller owns its lifetime.
func NewServer(config Config, storer storage.Driver) (*Server, error) {
	if storer == nil {
		return nil, fmt.Errorf("storage driver is required")
	}

	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}

	ag := config.Agent
	if ag == nil {
		ag = agent.New(agent.Config{Logger: log})
	}

	pool, err := worker.NewPool(&worker.Config{
		Driver:     storer,
		Publisher:  config.Publisher,
		NumWorkers: config.NumWorkers,
		Logger:     log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Driver: storer,
		Logger: log,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		storer:  storer,
		agent:   ag,
		reducer: reducer.New(),
		pool:    pool,
		logger:  log,
		app:     app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/sessions", s.handleCreateSession)
	app.Get("/v1/sessions", s.handleListSessions)
	app.Get("/v1/sessions/:id", s.handleGetSession)
	app.Post("/v1/chat", s.handleChat)
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// App returns the underlying fiber app, for mounting in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown stops accepting requests, then drains the persistence queue.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.pool.Close()
	return err
}
