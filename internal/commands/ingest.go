// internal/commands/ingest.go
package noesis

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mwiater/noesis/internal/rag"
)

var ingestWatch bool

// ingestCmd builds the persisted index from the document directory.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the document index",
	Long: `The 'ingest' command discovers the corpus files under the configured
document directory, chunks and embeds them, and persists the index. With
--watch it stays running and re-ingests whenever the corpus changes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := buildPipeline(GetConfig(), Logger(), cmd.OutOrStdout())
		if err != nil {
			return err
		}

		if _, _, err := pipeline.Ingest(cmd.Context()); err != nil {
			return err
		}
		if !ingestWatch {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cmd.Println("Watching for corpus changes. Press Ctrl+C to stop.")
		err = pipeline.Watch(ctx, func(_ *rag.MemoryIndex, summary rag.IngestSummary) {
			cmd.Printf("Re-ingested %d chunks from %d files\n", summary.Chunks, summary.Files)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "stay running and re-ingest when the corpus changes")
	rootCmd.AddCommand(ingestCmd)
}
