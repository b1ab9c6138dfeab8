// Package config loads clinrag configuration from a YAML file, environment
// variables, .env and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config mirrors the structure of the YAML config file.
type Config struct {
	Corpus    CorpusConfig    `mapstructure:"corpus"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Embedding ProviderConfig  `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Log       LogConfig       `mapstructure:"log"`
}

// CorpusConfig locates the corpus database.
type CorpusConfig struct {
	Path   string `mapstructure:"path"`
	Schema string `mapstructure:"schema"`
	// MetadataOverrides is an optional YAML file of curated title, author
	// and year per filename.
	MetadataOverrides string `mapstructure:"metadata_overrides"`
}

// IngestConfig controls the offline build.
type IngestConfig struct {
	ChunkSize      int           `mapstructure:"chunk_size"`
	ChunkOverlap   int           `mapstructure:"chunk_overlap"`
	MinTextChars   int           `mapstructure:"min_text_chars"`
	MinChunkChars  int           `mapstructure:"min_chunk_chars"`
	Workers        int           `mapstructure:"workers"`
	Embed          bool          `mapstructure:"embed"`
	EmbedInterval  time.Duration `mapstructure:"embed_interval"`
	EmbedBatchSize int           `mapstructure:"embed_batch_size"`
}

// RetrievalConfig holds ranking and evidence thresholds. MinSimilarity and
// MinKeywordScore are separate knobs; they are not on the same scale.
type RetrievalConfig struct {
	TopK            int     `mapstructure:"top_k"`
	MinSimilarity   float64 `mapstructure:"min_similarity"`
	MinKeywordScore float64 `mapstructure:"min_keyword_score"`
	ExcerptChars    int     `mapstructure:"excerpt_chars"`
	MaxCitations    int     `mapstructure:"max_citations"`
}

// ProviderConfig configures an embedding provider.
type ProviderConfig struct {
	Provider string        `mapstructure:"provider"`
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

// LogConfig configures internal/log.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// New returns a viper instance with defaults and environment binding set up.
// Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CLINRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// One OPENAI_API_KEY serves both providers unless overridden.
	_ = v.BindEnv("embedding.api_key", "CLINRAG_EMBEDDING_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.api_key", "CLINRAG_LLM_API_KEY", "OPENAI_API_KEY")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("corpus.path", "data/papers_rag.db")
	v.SetDefault("corpus.schema", "vector")
	v.SetDefault("corpus.metadata_overrides", "")

	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("ingest.chunk_overlap", 200)
	v.SetDefault("ingest.min_text_chars", 100)
	v.SetDefault("ingest.min_chunk_chars", 50)
	v.SetDefault("ingest.workers", runtime.NumCPU())
	v.SetDefault("ingest.embed", true)
	v.SetDefault("ingest.embed_interval", 100*time.Millisecond)
	v.SetDefault("ingest.embed_batch_size", 16)

	v.SetDefault("retrieval.top_k", 10)
	v.SetDefault("retrieval.min_similarity", 0.8)
	v.SetDefault("retrieval.min_keyword_score", 5)
	v.SetDefault("retrieval.excerpt_chars", 800)
	v.SetDefault("retrieval.max_citations", 0)

	v.SetDefault("embedding.provider", "ollama")
	v.SetDefault("embedding.base_url", "http://localhost:11434")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.timeout", 30*time.Second)

	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.model", "qwen3:8b")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_tokens", 800)
	v.SetDefault("llm.temperature", 0.7)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads .env (if present), then the YAML file at path (if non-empty),
// and unmarshals the merged result. A missing config file is an error only
// when path was given explicitly.
func Load(v *viper.Viper, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants the rest of the program relies on.
func (c *Config) Validate() error {
	switch c.Corpus.Schema {
	case "vector", "lightweight":
	default:
		return fmt.Errorf("corpus.schema must be vector or lightweight, got %q", c.Corpus.Schema)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive")
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}
	for name, p := range map[string]string{"embedding": c.Embedding.Provider, "llm": c.LLM.Provider} {
		switch p {
		case "ollama", "openai", "none":
		default:
			return fmt.Errorf("%s.provider must be ollama, openai or none, got %q", name, p)
		}
	}
	return nil
}
