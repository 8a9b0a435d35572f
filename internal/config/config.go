package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the khoj API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Redis     RedisConfig     `yaml:"redis"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Feedback  FeedbackConfig  `yaml:"feedback"`
	Search    SearchConfig    `yaml:"search"`
	Canon     CanonConfig     `yaml:"canon"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// RedisConfig holds the lexical search backend connection settings.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	Index            string   `yaml:"index"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// QdrantConfig holds the semantic search backend connection settings.
type QdrantConfig struct {
	Addr              string `yaml:"addr"`
	ArticleCollection string `yaml:"article_collection"`
	ChunkCollection   string `yaml:"chunk_collection"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// CorpusConfig holds the parquet corpus paths.
type CorpusConfig struct {
	ArticlesPath string `yaml:"articles_path"`
	ChunksPath   string `yaml:"chunks_path"`
	VocabMinFreq int    `yaml:"vocab_min_freq"`
}

// FeedbackConfig holds the feedback log settings.
type FeedbackConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SearchConfig holds retrieval and fusion settings.
type SearchConfig struct {
	LexicalTimeoutMS  int `yaml:"lexical_timeout_ms"`
	SemanticTimeoutMS int `yaml:"semantic_timeout_ms"`

	LexicalTopK    int `yaml:"lexical_top_k"`
	SemArticleTopK int `yaml:"sem_article_top_k"`
	SemChunkTopK   int `yaml:"sem_chunk_top_k"`
	CandidateCap   int `yaml:"candidate_cap"`

	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
	LogTopN         int `yaml:"log_top_n"`

	Weights WeightsConfig `yaml:"weights"`
}

// WeightsConfig holds the fusion ranking weights.
type WeightsConfig struct {
	Lexical             float64 `yaml:"lexical"`
	SemArticle          float64 `yaml:"sem_article"`
	SemChunk            float64 `yaml:"sem_chunk"`
	FacetBoost          float64 `yaml:"facet_boost"`
	RecencyMax          float64 `yaml:"recency_max"`
	RecencyHalfLifeDays float64 `yaml:"recency_half_life_days"`
}

// CanonConfig holds query canonicalization settings.
type CanonConfig struct {
	MixedPolicy  string `yaml:"mixed_policy"` // roman (default), dev
	ShortLen     int    `yaml:"short_len"`
	MaxDistShort int    `yaml:"max_dist_short"`
	MaxDistLong  int    `yaml:"max_dist_long"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Redis.Index == "" {
		c.Redis.Index = "idx:articles"
	}
	if c.Qdrant.ArticleCollection == "" {
		c.Qdrant.ArticleCollection = "articles"
	}
	if c.Qdrant.ChunkCollection == "" {
		c.Qdrant.ChunkCollection = "chunks"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Corpus.VocabMinFreq <= 0 {
		c.Corpus.VocabMinFreq = 2
	}
	if c.Feedback.Path == "" {
		c.Feedback.Path = "khoj_feedback.db"
	}
	if c.Canon.MixedPolicy == "" {
		c.Canon.MixedPolicy = "roman"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}
	if c.Qdrant.Addr == "" {
		return fmt.Errorf("qdrant.addr is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Corpus.ArticlesPath == "" {
		return fmt.Errorf("corpus.articles_path is required")
	}
	if c.Corpus.ChunksPath == "" {
		return fmt.Errorf("corpus.chunks_path is required")
	}
	switch c.Canon.MixedPolicy {
	case "roman", "dev":
		// ok
	default:
		return fmt.Errorf("canon.mixed_policy must be \"roman\" or \"dev\", got %q", c.Canon.MixedPolicy)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
