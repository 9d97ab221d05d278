package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Qdrant     QdrantConfig     `mapstructure:"qdrant"`
	Completion CompletionConfig `mapstructure:"completion"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Synthesis  SynthesisConfig  `mapstructure:"synthesis"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Cache      CacheConfig      `mapstructure:"cache"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // "sqlite" or "postgres"
	Path            string        `mapstructure:"path"`   // sqlite file path
	DSN             string        `mapstructure:"dsn"`    // postgres connection string
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type CompletionConfig struct {
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // "jina" or "openai-compatible"
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	APIKeyEnv  string `mapstructure:"api_key_env"`
	BaseURL    string `mapstructure:"base_url"`
	BaseURLEnv string `mapstructure:"base_url_env"`
	Dimensions int    `mapstructure:"dimensions"`
}

type PipelineConfig struct {
	StoryMinChars    int           `mapstructure:"story_min_chars"`
	StoryMaxChars    int           `mapstructure:"story_max_chars"`
	ResumeMinChars   int           `mapstructure:"resume_min_chars"`
	ResumeMaxChars   int           `mapstructure:"resume_max_chars"`
	EvidenceMaxChars int           `mapstructure:"evidence_max_chars"`
	TickerInterval   time.Duration `mapstructure:"ticker_interval"`
}

type SynthesisConfig struct {
	MergeThreshold    float32 `mapstructure:"merge_threshold"`
	ScoringThreshold  float32 `mapstructure:"scoring_threshold"`
	InitialConfidence float64 `mapstructure:"initial_confidence"`
	ConfidenceBoost   float64 `mapstructure:"confidence_boost"`
	MaxMatches        int     `mapstructure:"max_matches"`
}

type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/attest.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "claims")
	v.SetDefault("completion.model", "gpt-4o-mini")
	v.SetDefault("completion.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.provider", "jina")
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.dimensions", 1024)
	v.SetDefault("pipeline.story_min_chars", 10)
	v.SetDefault("pipeline.story_max_chars", 20000)
	v.SetDefault("pipeline.resume_min_chars", 10)
	v.SetDefault("pipeline.resume_max_chars", 50000)
	v.SetDefault("pipeline.evidence_max_chars", 500)
	v.SetDefault("pipeline.ticker_interval", 2*time.Second)
	v.SetDefault("synthesis.merge_threshold", 0.82)
	v.SetDefault("synthesis.scoring_threshold", 0.70)
	v.SetDefault("synthesis.initial_confidence", 0.6)
	v.SetDefault("synthesis.confidence_boost", 0.3)
	v.SetDefault("synthesis.max_matches", 3)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.endpoint", "localhost:9000")
	v.SetDefault("archive.use_ssl", false)
	v.SetDefault("archive.bucket", "documents")
	v.SetDefault("cache.ttl", 5*time.Minute)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("completion.api_key", "OPENAI_API_KEY")
	v.BindEnv("completion.base_url", "OPENAI_BASE_URL")
	v.BindEnv("completion.model", "COMPLETION_MODEL")
	v.BindEnv("embedding.api_key", "JINA_API_KEY")
	v.BindEnv("archive.endpoint", "ARCHIVE_ENDPOINT")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")
	v.BindEnv("synthesis.merge_threshold", "MERGE_THRESHOLD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Embedding.ResolveEnvVars()

	return &cfg, nil
}

// ConnString returns the connection string for the configured driver.
func (c *DatabaseConfig) ConnString() string {
	if c.Driver == "postgres" {
		return c.DSN
	}
	return c.Path
}
