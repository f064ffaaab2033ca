// internal/commands/templates.go
package noesis

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/noesis/internal/engine"
	"github.com/mwiater/noesis/internal/util"
)

// templatesCmd lists the prompt templates the engine can answer with.
var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List available prompt templates",
	Long: `The 'templates' command lists the built-in prompt templates together with
any custom templates registered in the config file. The active template is
marked with an asterisk.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg == nil {
			return fmt.Errorf("configuration is not loaded")
		}

		eng, err := engine.New(cfg, Logger())
		if err != nil {
			return err
		}
		library := eng.Library()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Available templates:")
		for _, name := range library.Names() {
			t := library.Get(name)
			origin := "built-in"
			if _, ok := cfg.CustomPrompts[name]; ok {
				origin = "custom"
			}
			active := " "
			if name == eng.Template().Name {
				active = "*"
			}
			fmt.Fprintf(out, " %s %-20s %-9s %s\n", active, name, origin, util.TruncateRunes(t.SystemPrompt, 70))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
