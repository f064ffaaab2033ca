// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// legacyConfigPath is the path to the configuration file used in previous versions.
	legacyConfigPath = "config.json"
	// defaultRequestTimeout is the default timeout for remote backend requests.
	defaultRequestTimeout = 30 * time.Second
	// defaultChunkSize is the chunk budget, in characters, applied when the config omits it.
	defaultChunkSize = 1000
	// defaultChunkOverlap is the overlap between consecutive chunks, in characters.
	defaultChunkOverlap = 100
	// defaultNumResults is the number of chunks retrieved per query.
	defaultNumResults = 3
	// defaultMemorySize is the number of conversation turns kept in memory.
	defaultMemorySize = 5
	// defaultMaxTokens caps generated output length.
	defaultMaxTokens = 512
	// defaultTemperature is the sampling temperature for generation.
	defaultTemperature = 0.7
	// defaultEmbeddingDimension matches the all-MiniLM-L6-v2 vector width.
	defaultEmbeddingDimension = 384
)

// Config represents the top-level application configuration.
type Config struct {
	DocumentDir       string                    `json:"documentDir"`
	IndexPath         string                    `json:"indexPath"`
	Store             string                    `json:"store"`
	ChunkSize         int                       `json:"chunkSize"`
	ChunkOverlap      int                       `json:"chunkOverlap"`
	NumResults        int                       `json:"numResults"`
	Similarity        string                    `json:"similarity,omitempty"`
	MemorySize        int                       `json:"memorySize"`
	MaxTokens         int                       `json:"maxTokens"`
	Temperature       float64                   `json:"temperature"`
	Template          string                    `json:"template"`
	Embedding         Backend                   `json:"embedding"`
	Generator         Backend                   `json:"generator"`
	CustomPrompts     map[string]PromptOverride `json:"customPrompts,omitempty"`
	AllowedExtensions []string                  `json:"allowedExtensions,omitempty"`
	ExcludeGlobs      []string                  `json:"excludeGlobs,omitempty"`
	LogDir            string                    `json:"logDir"`
	LogFile           string                    `json:"logFile,omitempty"`
	ConversationsDir  string                    `json:"conversationsDir"`
	Debug             bool                      `json:"debug"`
	ConfigPath        string                    `json:"-"`
}

// Backend describes one model backend, either the in-process local one or a
// remote HTTP endpoint.
type Backend struct {
	Type           string   `json:"type"`
	Model          string   `json:"model"`
	URL            string   `json:"url,omitempty"`
	TimeoutSeconds int      `json:"timeout,omitempty"`
	APIKeyEnv      string   `json:"apiKeyEnv,omitempty"`
	Dimension      int      `json:"dimension,omitempty"`
	Stop           []string `json:"stop,omitempty"`
}

// PromptOverride carries a user-supplied prompt template from the config file.
// Empty affix fields fall back to the built-in defaults when the template is
// registered.
type PromptOverride struct {
	SystemPrompt  string `json:"systemPrompt"`
	QueryPrefix   string `json:"queryPrefix,omitempty"`
	QuerySuffix   string `json:"querySuffix,omitempty"`
	ContextPrefix string `json:"contextPrefix,omitempty"`
	ContextSuffix string `json:"contextSuffix,omitempty"`
}

// RequestTimeout returns the timeout duration for requests against this
// backend, falling back to the default if not specified.
func (b Backend) RequestTimeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// IsRemote reports whether the backend points at a remote HTTP endpoint.
func (b Backend) IsRemote() bool {
	return strings.EqualFold(strings.TrimSpace(b.Type), "remote")
}

// APIKey resolves the backend's API key from the environment, if configured.
func (b Backend) APIKey() string {
	if strings.TrimSpace(b.APIKeyEnv) == "" {
		return ""
	}
	return os.Getenv(b.APIKeyEnv)
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "noesis.log"
}

// EmbeddingDimension returns the configured embedding width, falling back to
// the default model's dimension.
func (c Config) EmbeddingDimension() int {
	if c.Embedding.Dimension <= 0 {
		return defaultEmbeddingDimension
	}
	return c.Embedding.Dimension
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		DocumentDir:  "./documents",
		IndexPath:    "./index/noesis.jsonl",
		Store:        "jsonl",
		ChunkSize:    defaultChunkSize,
		ChunkOverlap: defaultChunkOverlap,
		NumResults:   defaultNumResults,
		Similarity:   "cosine",
		MemorySize:   defaultMemorySize,
		MaxTokens:    defaultMaxTokens,
		Temperature:  defaultTemperature,
		Template:     "customer_service",
		Embedding: Backend{
			Type:      "local",
			Model:     "sentence-transformers/all-MiniLM-L6-v2",
			Dimension: defaultEmbeddingDimension,
		},
		Generator: Backend{
			Type:           "local",
			Model:          "deepseek",
			TimeoutSeconds: int(defaultRequestTimeout.Seconds()),
		},
		AllowedExtensions: []string{".txt", ".md"},
		LogDir:            "./logs",
		ConversationsDir:  "./conversations",
	}
}

// Load reads the application configuration from the specified path, with
// fallback to a legacy path. A missing or unreadable file yields the default
// configuration rather than an error; ConfigPath is left empty in that case so
// callers can tell defaults apart from a loaded file.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromPath(path)
	if err == nil {
		config.ConfigPath = path
		return config, nil
	}

	if errors.Is(err, os.ErrNotExist) && path == DefaultConfigPath {
		config, legacyErr := loadFromPath(legacyConfigPath)
		if legacyErr == nil {
			config.ConfigPath = legacyConfigPath
			return config, nil
		}
		if !errors.Is(legacyErr, os.ErrNotExist) {
			return Default(), fmt.Errorf("could not read config file %q: %w", legacyConfigPath, legacyErr)
		}
		return Default(), nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return Default(), fmt.Errorf("could not read config file %q: %w", path, err)
}

// Save writes the configuration as indented JSON, creating parent directories
// as needed.
func (c Config) Save(path string) error {
	if path == "" {
		path = DefaultConfigPath
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// loadFromPath is a helper function that loads the configuration from a specific file path.
func loadFromPath(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	config := Default()
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return Config{}, err
	}
	applyDefaults(&config)

	return config, nil
}

// applyDefaults fills zero-valued numeric settings so a sparse config file
// still produces a usable configuration.
func applyDefaults(c *Config) {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = defaultChunkOverlap
	}
	if c.NumResults <= 0 {
		c.NumResults = defaultNumResults
	}
	if c.MemorySize <= 0 {
		c.MemorySize = defaultMemorySize
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = defaultTemperature
	}
	if strings.TrimSpace(c.Store) == "" {
		c.Store = "jsonl"
	}
	if strings.TrimSpace(c.Template) == "" {
		c.Template = "customer_service"
	}
	if c.Generator.TimeoutSeconds <= 0 {
		c.Generator.TimeoutSeconds = int(defaultRequestTimeout.Seconds())
	}
}
