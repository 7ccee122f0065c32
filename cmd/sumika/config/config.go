// Package configcmder provides the config command for managing persistent
// sumika configuration stored in the .sumika/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent sumika configuration.

Configuration is stored as config.toml in the .sumika/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  api.listen, client.api_target,
  vector_store.provider, vector_store.target, vector_store.namespace,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  chat.provider, chat.target, chat.model, chat.max_history_tokens,
  search.top_k, search.threshold, search.advanced,
  ingest.batch_size,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  sumika config set <key> <value>    Set a configuration value
  sumika config get <key>            Get a configuration value
  sumika config list                 List all configuration values
  sumika config preset <name>        Write a provider preset

Examples:
  sumika config set embedding.model text-embedding-3-large
  sumika config set search.top_k 10
  sumika config get vector_store.provider
  sumika config preset ollama
  sumika config list`

const configShortDesc string = "Manage persistent sumika configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newPresetCmd())

	return cmd
}
