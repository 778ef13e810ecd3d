// Package config provides unified configuration loading for docindex.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the document pipeline and search.
type Config struct {
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	OCR           OCRConfig           `yaml:"ocr"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Index         IndexConfig         `yaml:"index"`
	Cache         CacheConfig         `yaml:"cache"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PipelineConfig holds document processing settings.
type PipelineConfig struct {
	MaxFileSizeBytes   uint64  `yaml:"max_file_size_bytes"`
	MinTextForNoOCR    int     `yaml:"min_text_for_no_ocr"`
	ShortPageThreshold int     `yaml:"short_page_threshold"`
	ThumbnailMaxSide   int     `yaml:"thumbnail_max_side"`
	OCRDiscount        float64 `yaml:"ocr_discount"`
	NoEntitiesFloor    float64 `yaml:"no_entities_floor"`
}

// OCRConfig holds recognition engine settings.
type OCRConfig struct {
	Binary        string `yaml:"binary"`
	Language      string `yaml:"language"`
	DPI           int    `yaml:"dpi"`
	PSM           int    `yaml:"psm"`
	TessdataDir   string `yaml:"tessdata_dir"`
	TSVConfidence bool   `yaml:"tsv_confidence"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Dimension int    `yaml:"dimension"`
	Path      string `yaml:"path"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			MaxFileSizeBytes:   25 << 20,
			MinTextForNoOCR:    100,
			ShortPageThreshold: 50,
			ThumbnailMaxSide:   256,
			OCRDiscount:        0.9,
			NoEntitiesFloor:    0.3,
		},
		OCR: OCRConfig{
			Binary:        "tesseract",
			Language:      "eng",
			DPI:           300,
			PSM:           3,
			TSVConfidence: true,
		},
		Embedding: EmbeddingConfig{
			BaseURL:   "http://localhost:8089/v1",
			Model:     "all-MiniLM-L6-v2",
			Dimension: 384,
			BatchSize: 32,
			Timeout:   30 * time.Second,
		},
		Index: IndexConfig{
			Dimension: 384,
			Path:      "docindex.vec",
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8086,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     60 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Pipeline.MaxFileSizeBytes == 0 {
		return fmt.Errorf("pipeline.max_file_size_bytes must be positive")
	}

	if c.Pipeline.OCRDiscount <= 0 || c.Pipeline.OCRDiscount > 1 {
		return fmt.Errorf("pipeline.ocr_discount must be in (0, 1]")
	}

	if c.Pipeline.NoEntitiesFloor < 0 || c.Pipeline.NoEntitiesFloor > 1 {
		return fmt.Errorf("pipeline.no_entities_floor must be in [0, 1]")
	}

	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive")
	}

	if c.Index.Dimension <= 0 {
		return fmt.Errorf("index.dimension must be positive")
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOCINDEX_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DOCINDEX_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("DOCINDEX_OCR_BINARY"); v != "" {
		cfg.OCR.Binary = v
	}

	if v := os.Getenv("DOCINDEX_OCR_LANGUAGE"); v != "" {
		cfg.OCR.Language = v
	}

	if v := os.Getenv("DOCINDEX_EMBEDDING_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}

	if v := os.Getenv("DOCINDEX_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}

	if v := os.Getenv("DOCINDEX_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}

	if v := os.Getenv("DOCINDEX_INDEX_PATH"); v != "" {
		cfg.Index.Path = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = trimScheme(v)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

func trimScheme(addr string) string {
	const prefix = "redis://"
	if len(addr) > len(prefix) && addr[:len(prefix)] == prefix {
		return addr[len(prefix):]
	}
	return addr
}
