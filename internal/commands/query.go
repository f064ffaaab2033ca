// internal/commands/query.go
package noesis

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwiater/noesis/internal/monitor"
	"github.com/mwiater/noesis/internal/util"
)

// answerWidth wraps one-shot answers for terminal reading.
const answerWidth = 80

var queryVerbose bool

// queryCmd answers a single question from the command line and exits.
var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask one question against the document index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return fmt.Errorf("question is required")
		}

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

		result, err := eng.Query(cmd.Context(), question)
		if err != nil {
			return err
		}

		record := monitor.QueryRecord{
			Query:        question,
			ResponseTime: result.Duration.Seconds(),
			Success:      !result.Failed,
		}
		if result.Failed {
			record.Error = result.Reason
		} else {
			record.TokenCount = monitor.TokenEstimate(result.Answer)
			record.Metadata = map[string]any{"sources": result.Sources}
		}
		_ = mon.LogQuery(record)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out)
		fmt.Fprintln(out, util.WrapToWidth(result.Answer, answerWidth))
		if len(result.Sources) > 0 {
			fmt.Fprintf(out, "\nSources: %s\n", strings.Join(result.Sources, ", "))
		}
		fmt.Fprintf(out, "Answered in %s\n", result.Duration.Truncate(time.Millisecond))

		if queryVerbose {
			fmt.Fprintln(out)
			for i, chunk := range result.Chunks {
				fmt.Fprintf(out, "chunk %d score=%.6f source=%s\n", i+1, chunk.Score, chunk.Entry.Source)
				fmt.Fprintf(out, "chunk %d text: %s\n", i+1, util.TruncateRunes(chunk.Entry.Text, 200))
			}
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().BoolVar(&queryVerbose, "verbose", false, "print the retrieved chunks with scores")
	rootCmd.AddCommand(queryCmd)
}
