package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Minio      MinioConfig      `yaml:"minio"`
	Queue      QueueConfig      `yaml:"queue"`
	Worker     WorkerConfig     `yaml:"worker"`
	Upload     UploadConfig     `yaml:"upload"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generative GenerativeConfig `yaml:"generative"`
	Search     SearchConfig     `yaml:"search"`
	Store      StoreConfig      `yaml:"store"`
}

type ServerConfig struct {
	Port          int     `yaml:"port"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DatabaseConfig points at the Postgres instance backing the document store,
// the vector index and the job queue. An empty URL switches both binaries'
// shared wiring to the in-memory implementations (single-process mode).
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type QueueConfig struct {
	VisibilityTimeoutMinutes int `yaml:"visibility_timeout_minutes"`
	DequeueWaitSeconds       int `yaml:"dequeue_wait_seconds"`
	PollIntervalMillis       int `yaml:"poll_interval_millis"`
	MaxAttempts              int `yaml:"max_attempts"`
}

func (q *QueueConfig) VisibilityTimeout() time.Duration {
	return time.Duration(q.VisibilityTimeoutMinutes) * time.Minute
}

func (q *QueueConfig) DequeueWait() time.Duration {
	return time.Duration(q.DequeueWaitSeconds) * time.Second
}

func (q *QueueConfig) PollInterval() time.Duration {
	return time.Duration(q.PollIntervalMillis) * time.Millisecond
}

type WorkerConfig struct {
	Concurrency           int `yaml:"concurrency"`
	ProcessTimeoutMinutes int `yaml:"process_timeout_minutes"`
}

func (w *WorkerConfig) ProcessTimeout() time.Duration {
	return time.Duration(w.ProcessTimeoutMinutes) * time.Minute
}

type UploadConfig struct {
	MaxSizeMB int `yaml:"max_size_mb"`
}

func (u *UploadConfig) MaxSizeBytes() int64 {
	return int64(u.MaxSizeMB) << 20
}

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
	MinSize int `yaml:"min_size"`
}

type EmbeddingConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	BatchSize      int    `yaml:"batch_size"`
	MaxRetries     int    `yaml:"max_retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type GenerativeConfig struct {
	APIURL         string  `yaml:"api_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxRetries     int     `yaml:"max_retries"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type SearchConfig struct {
	MatchThreshold float64 `yaml:"match_threshold"`
	MatchCount     int     `yaml:"match_count"`
	MaxMatchCount  int     `yaml:"max_match_count"`
	HighSimilarity float64 `yaml:"high_similarity"`
	HighMinSources int     `yaml:"high_min_sources"`
	MaxQuoteChars  int     `yaml:"max_quote_chars"`
}

type StoreConfig struct {
	MaxDocuments int `yaml:"max_documents"`
}

var GlobalConfig *Config

// Load reads the YAML config at path and applies defaults and environment
// overrides. A missing file is not an error: defaults plus environment
// variables are enough to run.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	GlobalConfig = &cfg
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RatePerSecond == 0 {
		cfg.Server.RatePerSecond = 20
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 40
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 8
	}
	if cfg.Minio.Bucket == "" {
		cfg.Minio.Bucket = "ecolens-reports"
	}
	if cfg.Minio.ExpireDays == 0 {
		cfg.Minio.ExpireDays = 7
	}
	if cfg.Queue.VisibilityTimeoutMinutes == 0 {
		cfg.Queue.VisibilityTimeoutMinutes = 10
	}
	if cfg.Queue.DequeueWaitSeconds == 0 {
		cfg.Queue.DequeueWaitSeconds = 5
	}
	if cfg.Queue.PollIntervalMillis == 0 {
		cfg.Queue.PollIntervalMillis = 250
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = 3
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 4
	}
	if cfg.Worker.ProcessTimeoutMinutes == 0 {
		cfg.Worker.ProcessTimeoutMinutes = 8
	}
	if cfg.Upload.MaxSizeMB == 0 {
		cfg.Upload.MaxSizeMB = 50
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 500
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 100
	}
	if cfg.Chunking.MinSize == 0 {
		cfg.Chunking.MinSize = 100
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
	if cfg.Generative.APIURL == "" {
		cfg.Generative.APIURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Generative.Model == "" {
		cfg.Generative.Model = "gemini-2.0-flash"
	}
	if cfg.Generative.Temperature == 0 {
		cfg.Generative.Temperature = 0.2
	}
	if cfg.Generative.MaxRetries == 0 {
		cfg.Generative.MaxRetries = 3
	}
	if cfg.Generative.TimeoutSeconds == 0 {
		cfg.Generative.TimeoutSeconds = 120
	}
	if cfg.Search.MatchThreshold == 0 {
		cfg.Search.MatchThreshold = 0.4
	}
	if cfg.Search.MatchCount == 0 {
		cfg.Search.MatchCount = 5
	}
	if cfg.Search.MaxMatchCount == 0 {
		cfg.Search.MaxMatchCount = 50
	}
	if cfg.Search.HighSimilarity == 0 {
		cfg.Search.HighSimilarity = 0.62
	}
	if cfg.Search.HighMinSources == 0 {
		cfg.Search.HighMinSources = 3
	}
	if cfg.Search.MaxQuoteChars == 0 {
		cfg.Search.MaxQuoteChars = 300
	}
	if cfg.Store.MaxDocuments == 0 {
		cfg.Store.MaxDocuments = 500
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.Minio.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.Minio.SecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.Minio.Bucket = v
	}
	if v := os.Getenv("EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_URL"); v != "" {
		cfg.Generative.APIURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Generative.APIKey = v
	}
}
