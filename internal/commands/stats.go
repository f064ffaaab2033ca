// internal/commands/stats.go
package noesis

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwiater/noesis/internal/monitor"
	"github.com/mwiater/noesis/internal/util"
)

var statsRecent int

var (
	statsHeader = color.New(color.FgCyan, color.Bold).SprintFunc()
	statsOK     = color.New(color.FgGreen).SprintFunc()
	statsBad    = color.New(color.FgRed).SprintFunc()
)

// statsCmd summarizes the recorded query sessions from the log directory.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recorded query sessions",
	Long: `The 'stats' command reads the per-session query logs from the configured
log directory and reports per-session counters plus overall totals.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg == nil {
			return fmt.Errorf("configuration is not loaded")
		}

		records, err := monitor.ReadLogs(cfg.LogDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintf(out, "No query logs under %s\n", cfg.LogDir)
			return nil
		}

		sessions := monitor.AggregateStats(records)
		fmt.Fprintln(out, statsHeader("Sessions"))
		totalQueries, totalErrors := 0, 0
		for _, s := range sessions {
			marker := statsOK("ok")
			if s.ErrorCount > 0 {
				marker = statsBad(fmt.Sprintf("%d errors", s.ErrorCount))
			}
			fmt.Fprintf(out, "  %s  queries=%-4d avg=%.0fms  tokens=%.1f  %s\n",
				shortSessionID(s.SessionID), s.QueryCount, s.AvgResponseTime*1000, s.AvgTokenCount, marker)
			totalQueries += s.QueryCount
			totalErrors += s.ErrorCount
		}
		fmt.Fprintf(out, "\n%d queries across %d sessions, %d errors\n", totalQueries, len(sessions), totalErrors)

		if statsRecent > 0 {
			start := len(records) - statsRecent
			if start < 0 {
				start = 0
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, statsHeader("Recent queries"))
			for _, record := range records[start:] {
				marker := statsOK("ok")
				if !record.Success {
					marker = statsBad("failed")
				}
				fmt.Fprintf(out, "  %s  %-6s %4.0fms  %s\n",
					record.Timestamp, marker, record.ResponseTime*1000, util.TruncateRunes(record.Query, 60))
			}
		}
		return nil
	},
}

// shortSessionID keeps session ids readable in the table.
func shortSessionID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	statsCmd.Flags().IntVar(&statsRecent, "recent", 0, "also list the last N individual queries")
	rootCmd.AddCommand(statsCmd)
}
