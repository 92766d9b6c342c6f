// Package sessionscmder provides the sessions command for browsing the
// sessions stored by a chat backend.
package sessionscmder

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/agentconsole/pkg/client"
	"github.com/papercomputeco/agentconsole/pkg/cliui"
	"github.com/papercomputeco/agentconsole/pkg/config"
	"github.com/papercomputeco/agentconsole/pkg/dotdir"
	"github.com/papercomputeco/agentconsole/pkg/logger"
	"github.com/papercomputeco/agentconsole/pkg/utils"
)

type sessionsCommander struct {
	apiTarget string
	agentID   string
	configDir string
	all       bool
	width     int

	out io.Writer
}

var sessionsFlags = []string{
	config.FlagAPITarget,
	config.FlagAgent,
}

const sessionsLongDesc string = `List the sessions stored by the chat backend.

Sessions are listed most recently updated first. By default only the
sessions of the configured agent are shown; pass --all to list every agent.
The session "agentconsole chat" would resume is marked with *.

Use "agentconsole sessions show <id>" to print a stored conversation.

Examples:
  agentconsole sessions --agent support-bot
  agentconsole sessions --all
  agentconsole sessions show 0b4c1f9e-...`

const sessionsShortDesc string = "List stored chat sessions"

func NewSessionsCmd() *cobra.Command {
	cmder := &sessionsCommander{}

	var v *viper.Viper

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: sessionsShortDesc,
		Long:  sessionsLongDesc,
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			var err error
			v, err = config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Registry, sessionsFlags)

			cmder.apiTarget = v.GetString("client.api_target")
			cmder.agentID = v.GetString("client.agent_id")
			cmder.out = cmd.OutOrStdout()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.list(cmd.Context())
		},
	}

	// Registered as persistent so "sessions show" inherits them.
	for _, key := range sessionsFlags {
		def := config.Registry[key]
		cmd.PersistentFlags().StringP(def.Name, def.Shorthand, "", def.Description)
	}
	cmd.Flags().BoolVar(&cmder.all, "all", false, "List the sessions of every agent")

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a stored conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.show(cmd.Context(), args[0])
		},
	}
	show.Flags().IntVar(&cmder.width, "width", 80, "Wrap width for rendered markdown")
	cmd.AddCommand(show)

	return cmd
}

func (c *sessionsCommander) client() (*client.Client, error) {
	return client.New(client.Config{
		BaseURL: c.apiTarget,
		Logger:  logger.Nop(),
	})
}

func (c *sessionsCommander) list(ctx context.Context) error {
	cl, err := c.client()
	if err != nil {
		return err
	}

	agentID := c.agentID
	if c.all {
		agentID = ""
	}

	sessions, err := cl.ListSessions(ctx, agentID)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	state, err := dotdir.NewManager().LoadSessionState(c.configDir)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out)
	if len(sessions) == 0 {
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("No sessions found."))
		return nil
	}

	for _, s := range sessions {
		marker := " "
		if state.Last(s.VirtualAgentID) == s.ID {
			marker = cliui.SuccessMark
		}

		fmt.Fprintf(c.out, "  %s %s  %s  %s  %s\n",
			marker,
			cliui.HashStyle.Render(s.ID),
			cliui.NameStyle.Render(s.VirtualAgentID),
			cliui.ValueStyle.Render(fmt.Sprintf("%d messages", s.MessageCount)),
			cliui.DimStyle.Render(s.UpdatedAt.Local().Format(time.DateTime)),
		)
	}
	fmt.Fprintln(c.out)

	return nil
}

func (c *sessionsCommander) show(ctx context.Context, id string) error {
	cl, err := c.client()
	if err != nil {
		return err
	}

	history, err := cl.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching session %s: %w", utils.Truncate(id, 36), err)
	}

	fmt.Fprintf(c.out, "\n  %s %s\n  %s %s\n\n",
		cliui.KeyStyle.Render("Session:"),
		cliui.HashStyle.Render(history.ID),
		cliui.KeyStyle.Render("Agent:"),
		cliui.NameStyle.Render(history.VirtualAgentID),
	)

	opts := cliui.RenderOptions{Width: c.width, Markdown: true, Reasoning: true}
	for _, m := range history.Messages {
		fmt.Fprintln(c.out, cliui.RenderMessage(m, opts))
	}

	return nil
}
