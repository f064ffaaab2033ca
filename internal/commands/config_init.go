// internal/commands/config_init.go
package noesis

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwiater/noesis/internal/appconfig"
)

var configInitForce bool

// configInitCmd implements 'config init', which writes a starter config file.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long:  `Write the default configuration to the config path so it can be edited.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = appconfig.DefaultConfigPath
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}

		cfg := appconfig.Default()
		if err := cfg.Save(path); err != nil {
			return err
		}
		cmd.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
}
