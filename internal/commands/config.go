// internal/commands/config.go
package noesis

import (
	"github.com/spf13/cobra"
)

// configCmd represents the 'config' command group for configuration tasks.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Group commands for working with the configuration",
	Long:  `The 'config' command groups subcommands that inspect or write the noesis configuration.`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
