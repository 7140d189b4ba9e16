package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

var (
	configPath    string
	redisURLFlag  string
	namespaceFlag string
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warren",
	Short: "Warren - interactive explorer for language-model quality-diversity search",
	Long: `Warren drives a MAP-Elites style search over floor plans, using a
language model as the mutation operator, and lets you browse the resulting
archive one window at a time.

Sessions, their history of archive snapshots, and the global checkpoint live
in Redis so that the CLI and warrend can share them.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Errors are printed by the printer package.
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "warren.yml", "Path to warren.yml (defaults apply if missing)")
	rootCmd.PersistentFlags().StringVar(&redisURLFlag, "redis-url", "", "Redis URL (overrides config and WARREN_REDIS_URL)")
	rootCmd.PersistentFlags().StringVarP(&namespaceFlag, "namespace", "n", "", "Key namespace (overrides config and WARREN_NAMESPACE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log structured events to stderr")
}
