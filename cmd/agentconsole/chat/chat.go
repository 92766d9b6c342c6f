// Package chatcmder provides the chat command: an interactive console for
// a streaming chat agent, rendered as a TUI on terminals and as a plain
// line-oriented REPL otherwise.
package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/papercomputeco/agentconsole/pkg/chat/scheduler"
	"github.com/papercomputeco/agentconsole/pkg/chat/session"
	"github.com/papercomputeco/agentconsole/pkg/chat/transcript"
	"github.com/papercomputeco/agentconsole/pkg/client"
	"github.com/papercomputeco/agentconsole/pkg/config"
	"github.com/papercomputeco/agentconsole/pkg/dotdir"
	"github.com/papercomputeco/agentconsole/pkg/eventstream"
	"github.com/papercomputeco/agentconsole/pkg/eventstream/kafka"
	"github.com/papercomputeco/agentconsole/pkg/eventstream/nop"
	"github.com/papercomputeco/agentconsole/pkg/logger"
)

// debugLogFile receives JSON logs with --debug, inside the .agentconsole/ dir.
const debugLogFile = "chat.log"

// ErrNoAgent is returned when no agent id is configured.
var ErrNoAgent = errors.New(`no agent configured; pass --agent or run "agentconsole config set client.agent_id <id>"`)

type chatCommander struct {
	apiTarget     string
	chatPath      string
	agentID       string
	timeout       time.Duration
	frameInterval time.Duration
	kafkaBrokers  string
	kafkaTopic    string

	record    string
	plain     bool
	fresh     bool
	debug     bool
	configDir string

	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	ddm       *dotdir.Manager
	state     *dotdir.SessionState
	publisher eventstream.Publisher
	ctrl      *session.Controller
}

var chatFlags = []string{
	config.FlagAPITarget,
	config.FlagChatPath,
	config.FlagAgent,
	config.FlagTimeout,
	config.FlagFrameInterval,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

const chatLongDesc string = `Start an interactive chat with a streaming agent.

Responses stream in as they are generated: reasoning, tool calls and text
are folded into a live transcript. The last session used with each agent
is remembered and resumed on the next run; pass --new to start over.

On a terminal chat opens a full screen UI:
  enter    send         ctrl+s   stop the response
  ctrl+n   new chat     ctrl+c   quit

With --plain, or when stdin is not a terminal, chat reads one message per
line. Type /new to start over, /agent <id> to switch agents and /exit to quit.
Ctrl+C stops a streaming response.

Examples:
  agentconsole chat --agent support-bot
  agentconsole chat --agent support-bot --new --record stream.log
  echo "hello" | agentconsole chat --agent support-bot`

const chatShortDesc string = "Chat with a streaming agent"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	var v *viper.Viper

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			var err error
			v, err = config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, chatFlags)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.apiTarget = v.GetString("client.api_target")
			cmder.chatPath = v.GetString("client.chat_path")
			cmder.agentID = v.GetString("client.agent_id")
			cmder.timeout = v.GetDuration("client.timeout")
			cmder.frameInterval = v.GetDuration("client.frame_interval")
			cmder.kafkaBrokers = v.GetString("eventstream.kafka_brokers")
			cmder.kafkaTopic = v.GetString("eventstream.kafka_topic")

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagAPITarget, &cmder.apiTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagChatPath, &cmder.chatPath)
	config.AddStringFlag(cmd, config.Registry, config.FlagAgent, &cmder.agentID)
	config.AddDurationFlag(cmd, config.Registry, config.FlagTimeout, &cmder.timeout)
	config.AddDurationFlag(cmd, config.Registry, config.FlagFrameInterval, &cmder.frameInterval)
	config.AddStringFlag(cmd, config.Registry, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Registry, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().StringVar(&cmder.record, "record", "", "Write the raw response streams to this file")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Use the line-oriented interface even on a terminal")
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Start a new conversation instead of resuming the last one")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.agentID == "" {
		return ErrNoAgent
	}

	tui := !c.plain && isTerminal(c.in) && isTerminal(c.out)

	closeLog, err := c.initLogger(tui)
	if err != nil {
		return err
	}
	defer closeLog()

	var tee io.Writer
	if c.record != "" {
		f, err := os.Create(c.record)
		if err != nil {
			return fmt.Errorf("opening record file: %w", err)
		}
		defer f.Close()
		tee = f
	}

	if err := c.setup(tee); err != nil {
		return err
	}
	defer c.publisher.Close()

	resumed := c.resume(ctx)

	if tui {
		return c.runTUI(ctx, resumed)
	}
	return c.runPlain(ctx, resumed)
}

// initLogger keeps debug output off the screen. Plain mode logs warnings
// to stderr; the TUI owns the terminal and logs nowhere. With --debug both
// also record everything as JSON in the dotdir chat.log.
func (c *chatCommander) initLogger(tui bool) (func(), error) {
	var console *slog.Logger
	if !tui {
		console = logger.New(
			logger.WithLevel(slog.LevelWarn),
			logger.WithPretty(true),
			logger.WithWriter(os.Stderr),
		)
	}

	if !c.debug {
		c.logger = console
		if c.logger == nil {
			c.logger = logger.Nop()
		}
		return func() {}, nil
	}

	dir, err := c.dotdir().Ensure(c.configDir)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, debugLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening debug log: %w", err)
	}
	file := logger.New(
		logger.WithDebug(true),
		logger.WithJSON(true),
		logger.WithSource(true),
		logger.WithWriter(f),
	)
	c.logger = logger.Multi(console, file)
	return func() { f.Close() }, nil
}

// setup builds the client, publisher and controller.
func (c *chatCommander) setup(tee io.Writer) error {
	if c.logger == nil {
		c.logger = logger.Nop()
	}

	cl, err := client.New(client.Config{
		BaseURL:  c.apiTarget,
		ChatPath: c.chatPath,
		Logger:   c.logger,
	})
	if err != nil {
		return err
	}

	c.publisher, err = c.newPublisher()
	if err != nil {
		return err
	}

	c.state, err = c.dotdir().LoadSessionState(c.configDir)
	if err != nil {
		c.logger.Warn("ignoring unreadable session state", "error", err)
		c.state = &dotdir.SessionState{}
	}

	c.ctrl, err = session.New(&session.Config{
		AgentID:   c.agentID,
		Transport: cl,
		Sessions:  cl,
		Store:     transcript.NewStore(),
		Clock:     scheduler.NewIntervalClock(c.frameInterval),
		Timeout:   c.timeout,
		Tee:       tee,
		Logger:    c.logger,
		OnFinish:  c.onFinish,
	})
	return err
}

func (c *chatCommander) newPublisher() (eventstream.Publisher, error) {
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
	return p, nil
}

// resume loads the last session of the agent unless --new was given.
// It returns the number of messages loaded.
func (c *chatCommander) resume(ctx context.Context) int {
	if c.fresh {
		c.forget(c.agentID)
		return 0
	}

	id := c.state.Last(c.agentID)
	if id == "" {
		return 0
	}

	if err := c.ctrl.Resume(ctx, id); err != nil {
		c.logger.Warn("could not resume session, starting a new one", "session", id, "error", err)
		c.forget(c.agentID)
		return 0
	}
	return len(c.ctrl.Store().Messages())
}

// onFinish remembers the session and publishes the outcome.
func (c *chatCommander) onFinish(f session.Finish) {
	if f.SessionID != "" {
		c.state.Remember(f.AgentID, f.SessionID, time.Now())
		if err := c.dotdir().SaveSessionState(c.state, c.configDir); err != nil {
			c.logger.Warn("could not save session state", "error", err)
		}
	}

	var msg *transcript.Message
	if f.Message.ID != "" {
		m := f.Message.Clone()
		msg = &m
	}
	ev := eventstream.NewResponseFinishedEvent(f.AgentID, f.SessionID, string(f.Status), msg)
	ev.Discarded = f.Discarded

	if err := c.publisher.PublishResponse(context.Background(), ev); err != nil {
		c.logger.Warn("could not publish response event", "session", f.SessionID, "error", err)
	}
}

// newChat abandons the conversation and forgets its session.
func (c *chatCommander) newChat() {
	c.ctrl.Reset()
	c.forget(c.ctrl.AgentID())
}

func (c *chatCommander) forget(agentID string) {
	if c.state.Last(agentID) == "" {
		return
	}
	c.state.Forget(agentID)
	if err := c.dotdir().SaveSessionState(c.state, c.configDir); err != nil {
		c.logger.Warn("could not save session state", "error", err)
	}
}

func (c *chatCommander) dotdir() *dotdir.Manager {
	if c.ddm == nil {
		c.ddm = dotdir.NewManager()
	}
	return c.ddm
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
