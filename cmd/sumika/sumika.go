// Package sumikacmder
package sumikacmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/sumika-ai/sumika/cmd/sumika/chat"
	clearcmder "github.com/sumika-ai/sumika/cmd/sumika/clear"
	configcmder "github.com/sumika-ai/sumika/cmd/sumika/config"
	initcmder "github.com/sumika-ai/sumika/cmd/sumika/init"
	searchcmder "github.com/sumika-ai/sumika/cmd/sumika/search"
	servecmder "github.com/sumika-ai/sumika/cmd/sumika/serve"
	statuscmder "github.com/sumika-ai/sumika/cmd/sumika/status"
	uploadcmder "github.com/sumika-ai/sumika/cmd/sumika/upload"
	versioncmder "github.com/sumika-ai/sumika/cmd/version"
)

const sumikaLongDesc string = `Sumika answers questions about a property's neighborhood from an
indexed knowledge base.

Upload documents with:
  sumika upload notes.txt --separators "---"
  sumika upload facilities.csv

Then ask questions:
  sumika search "how far is the nearest station"
  sumika chat "is the area good for families?"

Run the API server with:
  sumika serve`

const sumikaShortDesc string = "Sumika - Neighborhood Q&A"

func NewSumikaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sumika",
		Short: sumikaShortDesc,
		Long:  sumikaLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .sumika config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(uploadcmder.NewUploadCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(clearcmder.NewClearCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
