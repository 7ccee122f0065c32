// Package uploadcmder provides the upload command for sending documents to
// the sumika API server.
package uploadcmder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sumika-ai/sumika/api"
	"github.com/sumika-ai/sumika/pkg/chunk"
	"github.com/sumika-ai/sumika/pkg/cliui"
	"github.com/sumika-ai/sumika/pkg/config"
)

type uploadCommander struct {
	path       string
	separators []string
	namespace  string
	city       string
	mainCat    string
	subCat     string

	apiTarget string
}

const uploadLongDesc string = `Upload a document to the sumika index via the API server.

Text files are split into chunks on the given separators; CSV files must use
the fixed facility layout (category, sub-category, facility name, latitude,
longitude, walking distance, walking minutes, straight-line distance) and
produce one chunk per row.

Examples:
  sumika upload neighborhood-notes.txt --separators "---"
  sumika upload notes.txt --separators "==,;;" --main-category transport --sub-category station
  sumika upload facilities.csv --namespace yokohama`

const uploadShortDesc string = "Upload a document to the index"

func NewUploadCmd() *cobra.Command {
	cmder := &uploadCommander{}

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: uploadShortDesc,
		Long:  uploadLongDesc,
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
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			cmder.path = args[0]
			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringSliceVarP(&cmder.separators, "separators", "s", []string{"---"}, "Chunk separators for text files, applied in order")
	cmd.Flags().StringVarP(&cmder.namespace, "namespace", "n", "", "Index namespace")
	cmd.Flags().StringVar(&cmder.city, "city", "", "City metadata attached to every chunk")
	cmd.Flags().StringVar(&cmder.mainCat, "main-category", "", "Main category metadata")
	cmd.Flags().StringVar(&cmder.subCat, "sub-category", "", "Sub category metadata")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Sumika API server URL")

	return cmd
}

func (c *uploadCommander) run() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.path, err)
	}

	var out *api.UploadResponse
	err = cliui.Step(os.Stdout, fmt.Sprintf("Uploading %s", filepath.Base(c.path)), func() error {
		if strings.EqualFold(filepath.Ext(c.path), ".csv") {
			out, err = c.uploadCSV(data)
		} else {
			out, err = c.uploadText(data)
		}
		return err
	})
	if err != nil {
		return err
	}

	cliui.Kv(os.Stdout, "Chunks", fmt.Sprintf("%d", out.Chunks))
	cliui.Kv(os.Stdout, "Upserted", fmt.Sprintf("%d", len(out.Upserted)))
	if len(out.Failed) > 0 {
		cliui.Kv(os.Stdout, "Failed", strings.Join(out.Failed, ", "))
	}
	for _, rejected := range out.Rejected {
		fmt.Printf("  %s %s\n", cliui.FailMark, cliui.DimStyle.Render(rejected))
	}
	return nil
}

func (c *uploadCommander) uploadText(data []byte) (*api.UploadResponse, error) {
	reqBody := api.TextUploadRequest{
		Text:       string(data),
		Separators: c.separators,
		Namespace:  c.namespace,
		Metadata: chunk.Metadata{
			Filename:     filepath.Base(c.path),
			City:         c.city,
			MainCategory: c.mainCat,
			SubCategory:  c.subCat,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	resp, err := http.Post(c.apiTarget+"/v1/documents/text", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("calling API server: %w", err)
	}
	return decodeUploadResponse(resp)
}

func (c *uploadCommander) uploadCSV(data []byte) (*api.UploadResponse, error) {
	target := c.apiTarget + "/v1/documents/csv"
	if c.namespace != "" {
		target += "?namespace=" + url.QueryEscape(c.namespace)
	}

	resp, err := http.Post(target, "text/csv", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("calling API server: %w", err)
	}
	return decodeUploadResponse(resp)
}

func decodeUploadResponse(resp *http.Response) (*api.UploadResponse, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("upload failed: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("upload failed with status %d", resp.StatusCode)
	}

	var out api.UploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}
