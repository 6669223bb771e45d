package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nooikko/nightreign-query/internal/domain/category"
)

// Config holds the nightreign crawler and search configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Site      SiteConfig      `yaml:"site"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Ingest    IngestConfig    `yaml:"ingest"`
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

// DatabaseConfig holds the document index connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Content cache drivers.
const (
	CacheDriverBadger = "badger"
	CacheDriverRedis  = "redis"
)

// CacheConfig holds content cache settings.
type CacheConfig struct {
	Driver   string `yaml:"driver"` // badger (default), redis
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// SiteConfig describes the wiki being crawled.
type SiteConfig struct {
	BaseURL  string   `yaml:"base_url"`
	Seeds    []string `yaml:"seeds"`
	Scope    []string `yaml:"scope"`
	Excluded []string `yaml:"excluded"`
}

// CrawlerConfig holds crawl scheduling and fetch settings.
type CrawlerConfig struct {
	Workers           int     `yaml:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	FetchTimeoutSec   int     `yaml:"fetch_timeout_sec"`
	// MaxDepth of -1 means unlimited.
	MaxDepth      *int   `yaml:"max_depth"`
	MaxPages      int    `yaml:"max_pages"`
	ProgressEvery int    `yaml:"progress_every"`
	UserAgent     string `yaml:"user_agent"`
	MaxBodyBytes  int64  `yaml:"max_body_bytes"`
}

// EmbeddingConfig holds embedding provider and query cache settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"`
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	MaxBatch            int    `yaml:"max_batch"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	CacheTTLSec         int    `yaml:"cache_ttl_sec"`
	CacheCapacity       int    `yaml:"cache_capacity"`
}

// SearchConfig holds hybrid fusion settings.
type SearchConfig struct {
	LexicalWeight    float64 `yaml:"lexical_weight"`
	VectorWeight     float64 `yaml:"vector_weight"`
	SingleListWeight float64 `yaml:"single_list_weight"`
	IndexTimeoutMs   int     `yaml:"index_timeout_ms"`
}

// IndexConfig holds HNSW index settings.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// IngestConfig holds chunking and classification settings.
type IngestConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	BatchSize int `yaml:"batch_size"`
	// Categories maps a category name to the URL path prefixes classified as it.
	Categories map[string][]string `yaml:"categories"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path. A .env file in the
// working directory is loaded first; it never overrides variables already set.
func LoadFile(configPath string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

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
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheDriverBadger
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "data/pages"
	}
	if c.Crawler.Workers <= 0 {
		c.Crawler.Workers = 5
	}
	if c.Crawler.RequestsPerSecond <= 0 {
		c.Crawler.RequestsPerSecond = 2
	}
	if c.Crawler.Burst <= 0 {
		c.Crawler.Burst = 1
	}
	if c.Crawler.FetchTimeoutSec <= 0 {
		c.Crawler.FetchTimeoutSec = 30
	}
	if c.Crawler.MaxDepth == nil {
		unlimited := -1
		c.Crawler.MaxDepth = &unlimited
	}
	if c.Crawler.ProgressEvery <= 0 {
		c.Crawler.ProgressEvery = 25
	}
	if c.Crawler.UserAgent == "" {
		c.Crawler.UserAgent = "nightreign-query/1.0 (+crawler)"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Embedding.CacheTTLSec <= 0 {
		c.Embedding.CacheTTLSec = 300
	}
	if c.Embedding.CacheCapacity <= 0 {
		c.Embedding.CacheCapacity = 100
	}
	if c.Search.LexicalWeight == 0 && c.Search.VectorWeight == 0 {
		c.Search.LexicalWeight = 0.5
		c.Search.VectorWeight = 0.5
	}
	if c.Search.SingleListWeight == 0 {
		c.Search.SingleListWeight = 0.5
	}
	if c.Search.IndexTimeoutMs <= 0 {
		c.Search.IndexTimeoutMs = 5000
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = 1500
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 32
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Cache.Driver {
	case CacheDriverBadger, CacheDriverRedis:
	default:
		return fmt.Errorf("cache.driver must be %q or %q, got %q", CacheDriverBadger, CacheDriverRedis, c.Cache.Driver)
	}
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.Crawler.MaxDepth != nil && *c.Crawler.MaxDepth < -1 {
		return fmt.Errorf("crawler.max_depth must be -1 (unlimited) or >= 0, got %d", *c.Crawler.MaxDepth)
	}
	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must be >= 0, got %d", c.Crawler.MaxPages)
	}
	for name, w := range map[string]float64{
		"lexical_weight":     c.Search.LexicalWeight,
		"vector_weight":      c.Search.VectorWeight,
		"single_list_weight": c.Search.SingleListWeight,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("search.%s must be within [0, 1], got %v", name, w)
		}
	}
	if _, err := c.Ingest.CategoryRules(); err != nil {
		return err
	}
	return nil
}

// CategoryRules parses ingest.categories into typed categories.
func (c IngestConfig) CategoryRules() (map[category.Category][]string, error) {
	out := make(map[category.Category][]string, len(c.Categories))
	for name, prefixes := range c.Categories {
		cat, err := category.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("ingest.categories: %w", err)
		}
		out[cat] = append(out[cat], prefixes...)
	}
	return out, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
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
