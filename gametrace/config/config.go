package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/tocflow/gametrace/gametrace"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// DatabaseConfig stores database connection details.
type DatabaseConfig struct {
	DSN  string `mapstructure:"dsn"`
	Type string `mapstructure:"type"`
	// Embedded-only configuration
	LibSQLDataDir string `mapstructure:"libsql_data_dir"` // Directory for database files
}

// EngineConfig stores the turn-processing engine configuration.
type EngineConfig struct {
	// Turn retrieval
	TurnPageSize         int `mapstructure:"turn_page_size"`          // Most-recent page cap when no explicit turn IDs are given
	MinTurnContentLength int `mapstructure:"min_turn_content_length"` // Minimum trimmed content length for a processable turn

	// Embedding retry
	RetryAttempts  int           `mapstructure:"retry_attempts"`   // Total embedding attempts before surfacing the error
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"` // Base delay, multiplied by the attempt number (linear backoff)

	// Similarity
	SimilarityLimit int `mapstructure:"similarity_limit"` // Max similar games returned
	MinTokenLength  int `mapstructure:"min_token_length"` // Tokens shorter than this are dropped before Jaccard scoring

	// Batch processing
	BatchConcurrency int `mapstructure:"batch_concurrency"` // Max concurrent turn processors in a batch

	// Observability
	EnableMetrics bool `mapstructure:"enable_metrics"` // Enable in-process metrics collection
}

// EmbeddingConfig stores embedding service client configurations.
type EmbeddingConfig struct {
	Provider string        `mapstructure:"provider"` // "openai" (OpenAI-compatible HTTP endpoint)
	Endpoint string        `mapstructure:"endpoint"` // Embeddings endpoint URL
	Model    string        `mapstructure:"model"`    // Embedding model identifier
	Dims     int           `mapstructure:"dims"`     // Expected embedding dimensions
	Timeout  time.Duration `mapstructure:"timeout"`  // Per-request timeout
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("..")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("database.dsn", internal.DefaultDatabaseDSN)
	viper.SetDefault("database.type", internal.DefaultDatabaseType)
	viper.SetDefault("database.libsql_data_dir", internal.DefaultDatabaseDir)

	// Engine defaults
	viper.SetDefault("engine.turn_page_size", 20)
	viper.SetDefault("engine.min_turn_content_length", 20)
	viper.SetDefault("engine.retry_attempts", 3)
	viper.SetDefault("engine.retry_base_delay", "1s")
	viper.SetDefault("engine.similarity_limit", 5)
	viper.SetDefault("engine.min_token_length", 3)
	viper.SetDefault("engine.batch_concurrency", 4)
	viper.SetDefault("engine.enable_metrics", true)

	// Embedding defaults
	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.endpoint", "https://api.openai.com/v1/embeddings")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dims", 1536)
	viper.SetDefault("embedding.timeout", "15s")

	viper.AutomaticEnv()
	// Replace dots with underscores in env var names e.g. engine.turn_page_size becomes ENGINE_TURN_PAGE_SIZE
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults will be used. Not fatal.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}

// Watch re-unmarshals the configuration whenever the underlying file changes.
// The callback receives the freshly decoded config; decode failures keep the
// previous values.
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		var next Config
		if err := viper.Unmarshal(&next); err != nil {
			return
		}
		AppConfig = next
		if onChange != nil {
			onChange(&AppConfig)
		}
	})
	viper.WatchConfig()
}
