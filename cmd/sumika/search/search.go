// Package searchcmder provides the search command for querying the index.
package searchcmder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/sumika-ai/sumika/api"
	"github.com/sumika-ai/sumika/pkg/cliui"
	"github.com/sumika-ai/sumika/pkg/config"
	"github.com/sumika-ai/sumika/pkg/retriever"
	"github.com/sumika-ai/sumika/pkg/utils"
)

type searchCommander struct {
	query     string
	variants  []string
	topK      int
	threshold float64
	namespace string
	quiet     bool

	apiTarget string
}

const searchLongDesc string = `Search the neighborhood index via the sumika API server.

Returns the most relevant chunks for the query text. Requires a running
sumika API server.

Pass --variant to search additional phrasings of the same question alongside
the original. Results found by several variants rank higher.

Use --quiet to output only chunk ids, one per line, for piping.

Examples:
  sumika search "how far is the nearest station"
  sumika search "nearest supermarket" --variant "grocery store nearby" --top 10
  sumika search "school zones" --namespace yokohama --quiet`

const searchShortDesc string = "Search the neighborhood index"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
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
			if !cmd.Flags().Changed("top") {
				cmder.topK = cfg.Search.TopK
			}
			if !cmd.Flags().Changed("threshold") {
				cmder.threshold = cfg.Search.Threshold
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", defaults.Search.TopK, "Number of results to return")
	cmd.Flags().Float64Var(&cmder.threshold, "threshold", defaults.Search.Threshold, "Minimum similarity score")
	cmd.Flags().StringArrayVar(&cmder.variants, "variant", nil, "Additional query phrasing (repeatable)")
	cmd.Flags().StringVarP(&cmder.namespace, "namespace", "n", "", "Index namespace")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only chunk ids, one per line (for piping)")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Sumika API server URL")

	return cmd
}

func (c *searchCommander) run() error {
	out, err := SearchAPI(c.apiTarget, api.SearchRequest{
		Query:     c.query,
		Variants:  c.variants,
		TopK:      c.topK,
		Threshold: c.threshold,
		Namespace: c.namespace,
	})
	if err != nil {
		return err
	}

	if c.quiet {
		for _, match := range out.Details {
			fmt.Println(match.ID)
		}
		return nil
	}

	if out.Count == 0 {
		fmt.Println(cliui.DimStyle.Render("No relevant results."))
		return nil
	}

	fmt.Printf("\n%s\n\n", cliui.TitleStyle.Render(fmt.Sprintf("%d results for %q", out.Count, out.Query)))
	for i, match := range out.Details {
		if retriever.IsQuotaSentinel(match) {
			fmt.Println(cliui.ErrorStyle.Render(fmt.Sprintf("  %v", match.Metadata["text"])))
			continue
		}

		text, _ := match.Metadata["text"].(string)
		fmt.Printf("  %s %s %s\n",
			cliui.ScoreStyle.Render(fmt.Sprintf("%d.", i+1)),
			cliui.DimStyle.Render(fmt.Sprintf("(%.3f)", match.Score)),
			cliui.KeyStyle.Render(match.ID),
		)
		fmt.Printf("     %s\n", cliui.ValueStyle.Render(utils.Truncate(text, 200)))
	}
	fmt.Println()
	return nil
}

// SearchAPI posts a search request to a running sumika API server.
func SearchAPI(target string, req api.SearchRequest) (*api.SearchResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	resp, err := http.Post(target+"/v1/search", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("calling API server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("search failed: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("search failed with status %d", resp.StatusCode)
	}

	var out api.SearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}
