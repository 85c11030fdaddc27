package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"normativa-rag/internal/models"
)

// DataConfig locates the on-disk artifacts of an ingestion run.
type DataConfig struct {
	RawDir   string `yaml:"raw_dir"`
	IndexDir string `yaml:"index_dir"`
}

// ChunkingConfig configures how documents are split into fragments.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig selects the embedding model. Model is recorded with the
// index as its fingerprint.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // openai | ollama
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// ProviderConfig configures one answer-generation backend.
type ProviderConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// GenerationConfig holds the request-scoped generation options.
type GenerationConfig struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// ChromemConfig configures the chromem-go store backend.
type ChromemConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
}

// QdrantConfig configures the remote Qdrant store backend.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PostgresConfig configures the pgvector store backend.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

// StoreConfig selects the alternate persistence target for fragments and
// vectors. "local" means the file-backed index only.
type StoreConfig struct {
	Type     string          `yaml:"type"`
	Chromem  *ChromemConfig  `yaml:"chromem,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
}

// EvalConfig configures the offline quality evaluation harness.
type EvalConfig struct {
	GoldPath string `yaml:"gold_path"`
	OutDir   string `yaml:"out_dir"`
	K        int    `yaml:"k"`
}

type Config struct {
	Data       DataConfig                `yaml:"data"`
	Chunking   ChunkingConfig            `yaml:"chunking"`
	Embedding  EmbeddingConfig           `yaml:"embedding"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Generation GenerationConfig          `yaml:"generation"`
	Store      StoreConfig               `yaml:"store"`
	Eval       EvalConfig                `yaml:"eval"`
	TopK       int                       `yaml:"top_k"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Data.RawDir == "" {
		cfg.Data.RawDir = "data/raw"
	}
	if cfg.Data.IndexDir == "" {
		cfg.Data.IndexDir = "data/index"
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = models.DefaultChunkSize
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = models.DefaultChunkOverlap
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.2
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 1024
	}
	if cfg.Generation.TimeoutSecs == 0 {
		cfg.Generation.TimeoutSecs = 60
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "local"
	}
	if cfg.Eval.GoldPath == "" {
		cfg.Eval.GoldPath = "eval/gold_set.jsonl"
	}
	if cfg.Eval.OutDir == "" {
		cfg.Eval.OutDir = "eval"
	}
	if cfg.Eval.K == 0 {
		cfg.Eval.K = 4
	}
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
}
