package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

const (
	IngestModeDirect = "direct"
	IngestModeQueue  = "queue"
)

type Config struct {
	// Knowledge base
	KBRoot           string `envconfig:"KB_ROOT" default:"knowledge_base"`
	MaxChunkSize     int    `envconfig:"MAX_CHUNK_SIZE" default:"2000"`
	MinChunkSize     int    `envconfig:"MIN_CHUNK_SIZE" default:"500"`
	ValidateSecurity bool   `envconfig:"VALIDATE_SECURITY" default:"true"`
	MaxFileSizeBytes int64  `envconfig:"MAX_FILE_SIZE_BYTES" default:"10485760"` // 10MB
	MaxDepth         int    `envconfig:"MAX_DEPTH" default:"10"`

	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"softarchitect"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"softarchitect"`

	WeaviateHost   string  `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string  `envconfig:"WEAVIATE_SCHEME" default:"http"`
	WeaviateClass  string  `envconfig:"WEAVIATE_CLASS" default:"KnowledgeChunk"`
	SearchAlpha    float32 `envconfig:"SEARCH_ALPHA" default:"0.5"`

	NSQLookupd    string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost      string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP      string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	NSQMaxMsgSize int64  `envconfig:"NSQ_MAX_MSG_SIZE" default:"10485760"` // 10MB

	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`

	IngestMode           string `envconfig:"INGEST_MODE" default:"direct"`
	IngestionConcurrency int    `envconfig:"INGESTION_CONCURRENCY" default:"8"`
	MigrationPath        string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	WatchDebounceMS      int    `envconfig:"WATCH_DEBOUNCE_MS" default:"500"`

	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.KBRoot == "" {
		return fmt.Errorf("%w: KB_ROOT", ErrMissingRequired)
	}
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: MAX_CHUNK_SIZE must be positive", ErrInvalidValue)
	}
	if c.MinChunkSize < 0 {
		return fmt.Errorf("%w: MIN_CHUNK_SIZE must not be negative", ErrInvalidValue)
	}
	if c.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("%w: MAX_FILE_SIZE_BYTES must be positive", ErrInvalidValue)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("%w: MAX_DEPTH must be positive", ErrInvalidValue)
	}
	if c.IngestMode != IngestModeDirect && c.IngestMode != IngestModeQueue {
		return fmt.Errorf("%w: INGEST_MODE must be %q or %q", ErrInvalidValue, IngestModeDirect, IngestModeQueue)
	}
	if c.IngestionConcurrency < 1 {
		return fmt.Errorf("%w: INGESTION_CONCURRENCY must be at least 1", ErrInvalidValue)
	}
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	return nil
}

// DSN returns the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.BootstrapRetryDelaySeconds) * time.Second
}

func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMS) * time.Millisecond
}
