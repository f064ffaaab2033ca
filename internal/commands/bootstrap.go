// internal/commands/bootstrap.go
package noesis

import (
	"context"
	"fmt"
	"io"

	"github.com/mwiater/noesis/internal/appconfig"
	"github.com/mwiater/noesis/internal/engine"
	"github.com/mwiater/noesis/internal/logging"
	"github.com/mwiater/noesis/internal/monitor"
	"github.com/mwiater/noesis/internal/providerfactory"
	"github.com/mwiater/noesis/internal/providers"
	"github.com/mwiater/noesis/internal/rag"
)

// buildPipeline assembles the ingestion pipeline from the loaded configuration.
func buildPipeline(cfg *appconfig.Config, logger *logging.Logger, out io.Writer) (*rag.Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}
	embedder, err := providerfactory.NewEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := rag.NewStore(cfg.Store, cfg.IndexPath)
	if err != nil {
		return nil, err
	}
	return rag.NewPipeline(cfg, embedder, store, logger, out)
}

// buildEngine loads or builds the index and wires retriever, generator and
// engine together. Chat, query and eval all start here.
func buildEngine(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, out io.Writer) (*engine.Engine, error) {
	pipeline, err := buildPipeline(cfg, logger, out)
	if err != nil {
		return nil, err
	}
	index, summary, err := pipeline.EnsureIndex(ctx)
	if err != nil {
		return nil, err
	}
	if summary.Reused {
		fmt.Fprintf(out, "Loaded index %s (%d chunks from %d files)\n", summary.IndexPath, summary.Chunks, summary.Files)
	}

	retriever, err := rag.NewRetriever(pipeline.Embedder(), index)
	if err != nil {
		return nil, err
	}
	generator, err := providerfactory.NewGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}
	if pinger, ok := generator.(providers.Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			logger.Warn("generator backend unreachable, queries will degrade: %v", err)
		}
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := eng.Initialize(retriever, generator); err != nil {
		return nil, err
	}
	return eng, nil
}

// buildMonitor opens a monitoring session in the configured log directory.
func buildMonitor(cfg *appconfig.Config, logger *logging.Logger) (*monitor.Monitor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}
	return monitor.New(cfg.LogDir, cfg.ConversationsDir, logger)
}
