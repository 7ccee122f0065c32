// Package initcmder provides the init command for initializing a local
// .sumika directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	dirName = ".sumika"
)

const initLongDesc string = `Initialize a new .sumika/ directory in the current working directory.

Creates a local .sumika/ directory that takes precedence over the default
~/.sumika/ directory for configuration, chat session state, and the local
sqlite-vec index.

This is useful for maintaining separate indexes per property or project.

Examples:
  sumika init`

const initShortDesc string = "Initialize a local .sumika/ directory"

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit()
		},
	}

	return cmd
}

func runInit() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .sumika directory: %w", err)
	}

	fmt.Printf("Initialized .sumika directory: %s\n", dir)
	return nil
}
