// Package clearcmder provides the clear command for wiping an index
// namespace.
package clearcmder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sumika-ai/sumika/api"
	"github.com/sumika-ai/sumika/pkg/cliui"
	"github.com/sumika-ai/sumika/pkg/config"
)

type clearCommander struct {
	namespace string
	force     bool

	apiTarget string
}

const clearLongDesc string = `Delete every vector in an index namespace.

This cannot be undone. Prompts for confirmation unless --force is given.

Examples:
  sumika clear --namespace yokohama
  sumika clear --force`

const clearShortDesc string = "Delete every vector in a namespace"

func NewClearCmd() *cobra.Command {
	cmder := &clearCommander{}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: clearShortDesc,
		Long:  clearLongDesc,
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
			if !cmd.Flags().Changed("namespace") {
				cmder.namespace = cfg.VectorStore.Namespace
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.namespace, "namespace", "n", "", "Index namespace to clear")
	cmd.Flags().BoolVarP(&cmder.force, "force", "f", false, "Skip the confirmation prompt")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Sumika API server URL")

	return cmd
}

func (c *clearCommander) run() error {
	display := c.namespace
	if display == "" {
		display = "(default)"
	}

	if !c.force {
		fmt.Printf("Delete all vectors in namespace %s? [y/N] ", display)
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			return nil
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	target := c.apiTarget + "/v1/vectors"
	if c.namespace != "" {
		target += "?namespace=" + url.QueryEscape(c.namespace)
	}

	req, err := http.NewRequest(http.MethodDelete, target, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling API server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var apiErr api.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("clearing namespace: %s", apiErr.Error)
		}
		return fmt.Errorf("clearing namespace: status %d", resp.StatusCode)
	}

	fmt.Printf("%s Cleared namespace %s\n", cliui.SuccessMark, display)
	return nil
}
