// internal/commands/eval.go
package noesis

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/noesis/internal/evaluate"
)

var (
	evalFile      string
	evalThreshold float64
)

// evalCmd runs a golden question suite against the live engine.
var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run a golden question suite against the engine",
	Long: `The 'eval' command answers every question in a golden suite and checks the
answers for expected substrings and sources. Results are appended to the
per-backend results file; the exit code reflects the pass-rate threshold.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cases, err := evaluate.LoadSuite(evalFile)
		if err != nil {
			return err
		}

		cfg := GetConfig()
		logger := Logger()

		eng, err := buildEngine(cmd.Context(), cfg, logger, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer eng.Close()

		runner, err := evaluate.NewRunner(eng, cmd.OutOrStdout(), logger)
		if err != nil {
			return err
		}
		summary, _, err := runner.Run(cmd.Context(), cases)
		if err != nil {
			return err
		}

		if summary.PassRate < evalThreshold {
			return fmt.Errorf("pass rate %.1f%% below threshold %.1f%%",
				summary.PassRate*100, evalThreshold*100)
		}
		return nil
	},
}

func init() {
	evalCmd.Flags().StringVar(&evalFile, "file", "golden.json", "path to the golden suite JSON file")
	evalCmd.Flags().Float64Var(&evalThreshold, "threshold", 1.0, "minimum pass rate (0..1) for a zero exit")
	rootCmd.AddCommand(evalCmd)
}
