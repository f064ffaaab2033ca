// internal/providerfactory/factory.go
package providerfactory

import (
	"fmt"
	"strings"

	"github.com/mwiater/noesis/internal/appconfig"
	"github.com/mwiater/noesis/internal/logging"
	"github.com/mwiater/noesis/internal/providers"
	"github.com/mwiater/noesis/internal/providers/local"
	"github.com/mwiater/noesis/internal/providers/remote"
	"github.com/mwiater/noesis/internal/rag"
)

// embeddingCacheSize bounds the query embedding LRU shared by chat and eval.
const embeddingCacheSize = 512

// NewGenerator selects and configures the generation backend from the
// application configuration. An unset type means the in-process extractive
// backend.
func NewGenerator(cfg *appconfig.Config, logger *logging.Logger) (providers.Generator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config provided to provider factory")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Generator.Type)) {
	case "", "local":
		return local.New(), nil
	case "remote":
		return remote.New(cfg.Generator, logger)
	default:
		return nil, fmt.Errorf("unknown generator type %q (expected local or remote)", cfg.Generator.Type)
	}
}

// NewEmbedder selects the embedding backend from the application
// configuration and wraps it in an LRU cache so repeated queries skip the
// backend entirely.
func NewEmbedder(cfg *appconfig.Config, logger *logging.Logger) (rag.Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config provided to provider factory")
	}
	dimension := cfg.EmbeddingDimension()

	var embedder rag.Embedder
	switch strings.ToLower(strings.TrimSpace(cfg.Embedding.Type)) {
	case "", "local":
		e, err := rag.NewLocalEmbedder(dimension)
		if err != nil {
			return nil, err
		}
		embedder = e
	case "remote":
		e, err := rag.NewRemoteEmbedder(cfg.Embedding, dimension, logger)
		if err != nil {
			return nil, err
		}
		embedder = e
	default:
		return nil, fmt.Errorf("unknown embedding type %q (expected local or remote)", cfg.Embedding.Type)
	}

	return rag.NewCachedEmbedder(embedder, embeddingCacheSize)
}
