package main

import (
	"os"

	sumikacmder "github.com/sumika-ai/sumika/cmd/sumika"
)

func main() {
	cmd := sumikacmder.NewSumikaCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
