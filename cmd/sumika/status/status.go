// Package statuscmder provides the status command for inspecting the index.
package statuscmder

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sumika-ai/sumika/api"
	"github.com/sumika-ai/sumika/pkg/cliui"
	"github.com/sumika-ai/sumika/pkg/config"
)

type statusCommander struct {
	apiTarget string
}

const statusLongDesc string = `Show statistics for the vector index behind a running sumika API server.

Examples:
  sumika status
  sumika status --api-target http://localhost:8081`

const statusShortDesc string = "Show index statistics"

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Sumika API server URL")

	return cmd
}

func (c *statusCommander) run() error {
	resp, err := http.Get(c.apiTarget + "/v1/stats")
	if err != nil {
		return fmt.Errorf("calling API server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("fetching stats: %s", apiErr.Error)
		}
		return fmt.Errorf("fetching stats: status %d", resp.StatusCode)
	}

	var stats api.StatsResponse
	if err := json.Unmarshal(body, &stats); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	fmt.Printf("\n%s\n\n", cliui.TitleStyle.Render("Index status"))
	cliui.Kv(os.Stdout, "Dimension", fmt.Sprintf("%d", stats.Dimension))
	cliui.Kv(os.Stdout, "Vectors", fmt.Sprintf("%d", stats.TotalVectorCount))
	if stats.Metric != "" {
		cliui.Kv(os.Stdout, "Metric", stats.Metric)
	}

	if len(stats.Namespaces) > 0 {
		fmt.Printf("\n%s\n", cliui.TitleStyle.Render("  Namespaces"))
		names := make([]string, 0, len(stats.Namespaces))
		for name := range stats.Namespaces {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			display := name
			if display == "" {
				display = "(default)"
			}
			cliui.Kv(os.Stdout, display, fmt.Sprintf("%d", stats.Namespaces[name]))
		}
	}
	fmt.Println()
	return nil
}
