// internal/commands/chat.go
package noesis

import (
	"github.com/spf13/cobra"

	"github.com/mwiater/noesis/internal/chat"
)

// chatCmd represents the 'chat' command, which starts an interactive chat session.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session over the document index",
	Long: `The 'chat' command starts an interactive conversation grounded in the
ingested documents. Type 'stats' for session statistics, 'clear' to wipe
conversation memory, and 'exit' to leave.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		logger := Logger()

		eng, err := buildEngine(cmd.Context(), cfg, logger, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer eng.Close()

		mon, err := buildMonitor(cfg, logger)
		if err != nil {
			return err
		}

		return chat.Start(cmd.Context(), cfg, eng, mon, logger)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
