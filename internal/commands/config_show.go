// internal/commands/config_show.go
package noesis

import (
	"github.com/spf13/cobra"

	"github.com/mwiater/noesis/internal/appconfig"
)

var configShowVerbose bool

// configShowCmd implements 'config show', which displays the merged configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the merged configuration",
	Long:  `Show the configuration after the config file, environment, and flags have been merged.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		appconfig.ShowConfig(cmd.OutOrStdout(), GetConfig(), configShowVerbose)
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowVerbose, "verbose", false, "dump the full configuration structure")
	configCmd.AddCommand(configShowCmd)
}
