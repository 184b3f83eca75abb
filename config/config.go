// Package config provides configuration management for the offline
// retrieval engine. Settings come from three sources, highest precedence
// first: environment variables, a JSON configuration file, and built-in
// defaults.
//
// The configuration file is searched at:
//  1. $LOKI_CONFIG
//  2. ~/.loki/config.json
//  3. ./loki.json
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Paths groups the on-disk locations the core consumes.
type Paths struct {
	// VectorDBDir holds the built index directory.
	VectorDBDir string `json:"vector_db_dir" env:"LOKI_VECTOR_DB_DIR"`
	// DatabaseDir is the root of the PDF library.
	DatabaseDir string `json:"database_dir" env:"LOKI_DATABASE_DIR"`
	// IndexedDataDir holds the per-document shards between the two build
	// stages.
	IndexedDataDir string `json:"indexed_data_dir" env:"LOKI_INDEXED_DATA_DIR"`
	// ModelsDir holds local model files.
	ModelsDir string `json:"models_dir" env:"LOKI_MODELS_DIR"`
}

// LLM configures the generation backend.
type LLM struct {
	Model       string  `json:"model" env:"LOKI_LLM_MODEL"`
	BaseURL     string  `json:"base_url" env:"LOKI_LLM_BASE_URL"`
	ContextSize int     `json:"context_size" env:"LOKI_LLM_CONTEXT_SIZE"`
	Temperature float64 `json:"temperature" env:"LOKI_LLM_TEMPERATURE"`
	MaxTokens   int     `json:"max_tokens" env:"LOKI_LLM_MAX_TOKENS"`
}

// Embedding configures the embedding backend.
type Embedding struct {
	Provider string `json:"provider" env:"LOKI_EMBED_PROVIDER"`
	Model    string `json:"model" env:"LOKI_EMBED_MODEL"`
	BaseURL  string `json:"base_url" env:"LOKI_EMBED_BASE_URL"`
}

// Search configures the query defaults.
type Search struct {
	MaxResults    int     `json:"max_results" env:"LOKI_SEARCH_MAX_RESULTS"`
	MinSimilarity float64 `json:"min_similarity" env:"LOKI_SEARCH_MIN_SIMILARITY"`
}

// Indexing configures the build pipeline.
type Indexing struct {
	ChunkSize       int    `json:"chunk_size" env:"LOKI_CHUNK_SIZE"`
	ChunkOverlap    int    `json:"chunk_overlap" env:"LOKI_CHUNK_OVERLAP"`
	MaxChunksPerDoc int    `json:"max_chunks_per_doc" env:"LOKI_MAX_CHUNKS_PER_DOC"`
	MinCharsPerPage int    `json:"min_chars_per_page" env:"LOKI_MIN_CHARS_PER_PAGE"`
	MaxPages        int    `json:"max_pages" env:"LOKI_MAX_PAGES"`
	BatchSize       int    `json:"batch_size" env:"LOKI_BATCH_SIZE"`
	IndexType       string `json:"index_type" env:"LOKI_INDEX_TYPE"`
	OCR             bool   `json:"ocr" env:"LOKI_OCR"`
	OCRDPI          int    `json:"ocr_dpi" env:"LOKI_OCR_DPI"`
	OCRLanguage     string `json:"ocr_language" env:"LOKI_OCR_LANGUAGE"`
}

// Emergency configures the emergency stop.
type Emergency struct {
	// StopCommandWord halts the running answer when typed verbatim.
	StopCommandWord string `json:"stop_command_word" env:"LOKI_STOP_WORD"`
}

// Config is the process-wide configuration. Live workers snapshot the
// values they need at start and ignore later changes.
type Config struct {
	Paths     Paths     `json:"paths"`
	LLM       LLM       `json:"llm"`
	Embedding Embedding `json:"embedding"`
	Search    Search    `json:"search"`
	Indexing  Indexing  `json:"indexing"`
	Emergency Emergency `json:"emergency"`
	LogLevel  string    `json:"log_level" env:"LOKI_LOG_LEVEL"`
}

// Default returns the built-in configuration, rooted under the user's home
// directory.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	root := filepath.Join(home, ".loki")
	return &Config{
		Paths: Paths{
			VectorDBDir:    filepath.Join(root, "vector_db"),
			DatabaseDir:    filepath.Join(root, "database"),
			IndexedDataDir: filepath.Join(root, "indexed_data"),
			ModelsDir:      filepath.Join(root, "models"),
		},
		LLM: LLM{
			Model:       "llama3.2",
			ContextSize: 8192,
			Temperature: 0.7,
			MaxTokens:   2048,
		},
		Embedding: Embedding{
			Provider: "ollama",
			Model:    "all-minilm",
		},
		Search: Search{
			MaxResults:    5,
			MinSimilarity: 0.0,
		},
		Indexing: Indexing{
			ChunkSize:       2000,
			ChunkOverlap:    200,
			MaxChunksPerDoc: 100,
			MinCharsPerPage: 50,
			MaxPages:        2000,
			BatchSize:       32,
			IndexType:       "Flat",
			OCRDPI:          200,
			OCRLanguage:     "eng",
		},
		Emergency: Emergency{
			StopCommandWord: "STOP",
		},
		LogLevel: "INFO",
	}
}

// Load builds the effective configuration: defaults, overlaid by the
// configuration file when one exists, overlaid by environment variables.
func Load() (*Config, error) {
	cfg := Default()

	path := configFile()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// configFile returns $LOKI_CONFIG when it is set, otherwise the first
// existing candidate file, or "".
func configFile() string {
	if path := os.Getenv("LOKI_CONFIG"); path != "" {
		return path
	}
	candidates := []string{"loki.json"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append([]string{filepath.Join(home, ".loki", "config.json")}, candidates...)
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// ListModelFiles returns local model files (.gguf, .bin) under the
// configured models directory, for shells that let the user pick a
// generation model.
func (c *Config) ListModelFiles() []string {
	var models []string
	root := c.Paths.ModelsDir
	if root == "" {
		return nil
	}
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".gguf", ".bin":
			models = append(models, path)
		}
		return nil
	})
	return models
}

// Save persists the configuration as indented JSON, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
