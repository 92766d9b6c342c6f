// Package configcmder provides the config command for managing the
// persistent agentconsole configuration stored in the .agentconsole/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/agentconsole/pkg/cliui"
	"github.com/papercomputeco/agentconsole/pkg/config"
)

const configLongDesc string = `Manage persistent agentconsole configuration.

Configuration is stored as config.toml in the .agentconsole/ directory and
provides default values for command flags. CLI flags and AGENTCONSOLE_*
environment variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  client.api_target, client.chat_path, client.agent_id,
  client.timeout, client.frame_interval,
  server.listen, storage.sqlite_path, storage.postgres_dsn,
  eventstream.kafka_brokers, eventstream.kafka_topic

Use subcommands to get, set, or list configuration values:
  agentconsole config set <key> <value>    Set a configuration value
  agentconsole config get <key>            Get a configuration value
  agentconsole config list                 List all configuration values

Examples:
  agentconsole config set client.agent_id support-bot
  agentconsole config set client.timeout 2m
  agentconsole config get client.api_target
  agentconsole config list`

const configShortDesc string = "Manage persistent agentconsole configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// completeKeys offers config keys for the first positional argument.
func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
