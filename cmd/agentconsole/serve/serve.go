// Package servecmder provides the serve command that runs the development
// chat backend.
package servecmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/agentconsole/api"
	"github.com/papercomputeco/agentconsole/pkg/agent"
	"github.com/papercomputeco/agentconsole/pkg/cliui"
	"github.com/papercomputeco/agentconsole/pkg/config"
	"github.com/papercomputeco/agentconsole/pkg/eventstream"
	"github.com/papercomputeco/agentconsole/pkg/eventstream/kafka"
	"github.com/papercomputeco/agentconsole/pkg/eventstream/nop"
	"github.com/papercomputeco/agentconsole/pkg/logger"
	"github.com/papercomputeco/agentconsole/pkg/storage"
	"github.com/papercomputeco/agentconsole/pkg/storage/inmemory"
	"github.com/papercomputeco/agentconsole/pkg/storage/postgres"
	"github.com/papercomputeco/agentconsole/pkg/storage/sqlite"
	"github.com/papercomputeco/agentconsole/pkg/storage/sqlstore"
)

type serveCommander struct {
	listen       string
	sqlitePath   string
	postgresDSN  string
	kafkaBrokers string
	kafkaTopic   string
	delay        time.Duration
	workers      uint
	debug        bool
	jsonLogs     bool
	logFile      string

	out    io.Writer
	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagListen,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

const serveLongDesc string = `Run the agentconsole development backend.

The backend serves the chat protocol the console speaks: session management,
a streaming chat endpoint answered by a scripted agent, and an MCP endpoint
exposing stored sessions to MCP clients.

The scripted agent understands a few commands:
  /tool <name> <json>   Call a built-in tool (echo, upper, time)
  /error                Emit an in-band error before replying
  /fail                 Fail the response
  /silent               Complete without any text

Storage defaults to memory; pass --sqlite or --postgres to keep sessions.
Pass --kafka-brokers to publish a record of every finished response.

Examples:
  agentconsole serve
  agentconsole serve --sqlite ./sessions.db --delay 40ms
  agentconsole serve --postgres postgres://localhost/agentconsole --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the development chat backend"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	var v *viper.Viper

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			var err error
			v, err = config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, serveFlags)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.listen = v.GetString("server.listen")
			cmder.sqlitePath = v.GetString("storage.sqlite_path")
			cmder.postgresDSN = v.GetString("storage.postgres_dsn")
			cmder.kafkaBrokers = v.GetString("eventstream.kafka_brokers")
			cmder.kafkaTopic = v.GetString("eventstream.kafka_topic")

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.out = cmd.ErrOrStderr()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Registry, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Registry, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Registry, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Registry, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().DurationVar(&cmder.delay, "delay", 25*time.Millisecond, "Pause between streamed words of the scripted agent")
	cmd.Flags().UintVar(&cmder.workers, "workers", 3, "Number of persistence workers")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write logs as JSON")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	closeLog, err := c.initLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	if ctx == nil {
		ctx = context.Background()
	}

	driver, publisher, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()
	defer publisher.Close()

	server, err := api.NewServer(api.Config{
		ListenAddr: c.listen,
		Agent: agent.New(agent.Config{
			Delay:  c.delay,
			Logger: c.logger,
		}),
		Publisher:  publisher,
		NumWorkers: c.workers,
		Logger:     c.logger,
	}, driver)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}

// newStorageDriver picks postgres over sqlite over memory.
// initLogger builds the server logger: stdout, plus logFile when set. Debug
// logs carry their source location.
func (c *serveCommander) initLogger() (func(), error) {
	writers := []io.Writer{os.Stdout}
	closer := func() {}
	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, f)
		closer = func() { f.Close() }
	}

	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithSource(c.debug),
		logger.WithPretty(!c.jsonLogs && c.logFile == ""),
		logger.WithJSON(c.jsonLogs),
		logger.WithWriters(writers...),
	)
	return closer, nil
}

// open connects the storage driver and the event stream publisher,
// reporting each step on c.out.
func (c *serveCommander) open(ctx context.Context) (storage.Driver, eventstream.Publisher, error) {
	out := c.out
	if out == nil {
		out = io.Discard
	}

	var driver storage.Driver
	err := cliui.Step(out, "Opening session storage", func() error {
		var err error
		driver, err = c.newStorageDriver(ctx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var publisher eventstream.Publisher
	err = cliui.Step(out, "Connecting event stream", func() error {
		var err error
		publisher, err = c.newPublisher()
		return err
	})
	if err != nil {
		driver.Close()
		return nil, nil, err
	}
	return driver, publisher, nil
}

func (c *serveCommander) newStorageDriver(ctx context.Context) (storage.Driver, error) {
	opts := []sqlstore.Option{sqlstore.WithLogger(c.logger)}

	switch {
	case c.postgresDSN != "":
		driver, err := postgres.NewDriver(ctx, c.postgresDSN, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		c.logger.Info("using PostgreSQL storage")
		return driver, nil

	case c.sqlitePath != "":
		driver, err := sqlite.NewSQLiteDriver(c.sqlitePath, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		c.logger.Info("using SQLite storage", "path", c.sqlitePath)
		return driver, nil
	}

	c.logger.Info("using in-memory storage")
	return inmemory.NewDriver(), nil
}

func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	es := config.EventStreamConfig{KafkaBrokers: c.kafkaBrokers, KafkaTopic: c.kafkaTopic}
	brokers := es.Brokers()
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   c.kafkaTopic,
		Logger:  c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	c.logger.Info("publishing response events", "brokers", brokers, "topic", c.kafkaTopic)
	return p, nil
}
