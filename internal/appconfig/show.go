package appconfig

import (
	"fmt"
	"io"

	"github.com/k0kubun/pp"
)

// ShowConfig prints the current configuration summary. When verbose is set the
// full structure is dumped as well.
func ShowConfig(out io.Writer, cfg *Config, verbose bool) {
	if cfg == nil {
		fmt.Fprintln(out, "Configuration is not loaded.")
		return
	}

	if cfg.ConfigPath == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", cfg.ConfigPath)
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Document Dir:    %s\n", cfg.DocumentDir)
	fmt.Fprintf(out, "  Index Path:      %s\n", cfg.IndexPath)
	fmt.Fprintf(out, "  Store:           %s\n", cfg.Store)
	fmt.Fprintf(out, "  Chunk Size:      %d chars\n", cfg.ChunkSize)
	fmt.Fprintf(out, "  Chunk Overlap:   %d chars\n", cfg.ChunkOverlap)
	fmt.Fprintf(out, "  Num Results:     %d\n", cfg.NumResults)
	fmt.Fprintf(out, "  Memory Size:     %d turns\n", cfg.MemorySize)
	fmt.Fprintf(out, "  Max Tokens:      %d\n", cfg.MaxTokens)
	fmt.Fprintf(out, "  Temperature:     %.2f\n", cfg.Temperature)
	fmt.Fprintf(out, "  Template:        %s\n", cfg.Template)
	fmt.Fprintf(out, "  Embedding:       %s (%s)\n", cfg.Embedding.Type, cfg.Embedding.Model)
	fmt.Fprintf(out, "  Generator:       %s (%s)\n", cfg.Generator.Type, cfg.Generator.Model)
	if cfg.Generator.IsRemote() {
		fmt.Fprintf(out, "  Generator URL:   %s\n", cfg.Generator.URL)
		fmt.Fprintf(out, "  Generator Timeout: %s\n", cfg.Generator.RequestTimeout())
	}
	fmt.Fprintf(out, "  Log Dir:         %s\n", cfg.LogDir)
	fmt.Fprintf(out, "  Conversations:   %s\n", cfg.ConversationsDir)
	fmt.Fprintf(out, "  Debug:           %v\n", cfg.Debug)

	if verbose {
		fmt.Fprintln(out)
		pp.Println(cfg)
	}
}
