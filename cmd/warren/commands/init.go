package commands

import (
	"fmt"
	"os"

	"github.com/dyluth/warren/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new Warren project",
	Long: `Initialize a new Warren project in the current directory.

Creates:
  • warren.yml - Archive, model, and store configuration
  • .warren/checkpoints/ - Directory for the file checkpoint backend

Use --force to reinitialize an existing project (WARNING: overwrites warren.yml).`,
	RunE: runInit,
}

func init() {
	// Note: Cannot use -f shorthand because it conflicts with other flags
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Force reinitialization (overwrites existing warren.yml)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	if !forceInit {
		if err := scaffold.CheckExisting(dir); err != nil {
			return err
		}
	}

	if err := scaffold.Initialize(dir, forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess()
	return nil
}
