package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, uint64(25<<20), cfg.Pipeline.MaxFileSizeBytes)
	assert.Equal(t, 100, cfg.Pipeline.MinTextForNoOCR)
	assert.Equal(t, "tesseract", cfg.OCR.Binary)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 8086, cfg.Server.Port)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
pipeline:
  min_text_for_no_ocr: 200
ocr:
  language: deu
embedding:
  dimension: 768
index:
  dimension: 768
  path: /var/lib/docindex/index.vec
cache:
  ttl: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Pipeline.MinTextForNoOCR)
	assert.Equal(t, "deu", cfg.OCR.Language)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, "/var/lib/docindex/index.vec", cfg.Index.Path)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)

	// Untouched sections keep their defaults.
	assert.Equal(t, "tesseract", cfg.OCR.Binary)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("DOCINDEX_OCR_BINARY", "/opt/bin/tesseract")
	t.Setenv("DOCINDEX_EMBEDDING_MODEL", "bge-small-en")
	t.Setenv("REDIS_URL", "redis://cache.internal:6380")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/opt/bin/tesseract", cfg.OCR.Binary)
	assert.Equal(t, "bge-small-en", cfg.Embedding.Model)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache.internal:6380", cfg.Cache.Redis.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max size", func(c *Config) { c.Pipeline.MaxFileSizeBytes = 0 }},
		{"discount above one", func(c *Config) { c.Pipeline.OCRDiscount = 1.5 }},
		{"negative floor", func(c *Config) { c.Pipeline.NoEntitiesFloor = -0.1 }},
		{"zero embedding dim", func(c *Config) { c.Embedding.Dimension = 0 }},
		{"bad cache driver", func(c *Config) { c.Cache.Driver = "memcached" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}
