// Package agentconsolecmder
package agentconsolecmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/agentconsole/cmd/agentconsole/chat"
	configcmder "github.com/papercomputeco/agentconsole/cmd/agentconsole/config"
	servecmder "github.com/papercomputeco/agentconsole/cmd/agentconsole/serve"
	sessionscmder "github.com/papercomputeco/agentconsole/cmd/agentconsole/sessions"
	versioncmder "github.com/papercomputeco/agentconsole/cmd/agentconsole/version"
)

const agentConsoleLongDesc string = `agentconsole is a terminal console for streaming chat agents.

It talks to a chat backend that streams responses as server-sent events,
folds the stream into a live transcript and keeps conversations across runs.

Get started using:
  agentconsole serve                 Run the development backend
  agentconsole chat --agent demo     Chat with an agent
  agentconsole sessions              List stored sessions`

const agentConsoleShortDesc string = "agentconsole - Streaming chat console"

func NewAgentConsoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agentconsole",
		Short:         agentConsoleShortDesc,
		Long:          agentConsoleLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .agentconsole/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
