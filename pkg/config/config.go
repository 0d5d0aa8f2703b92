// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Database, Postgres, Kafka, Redis, Search, KB settings, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Search   SearchConfig   `yaml:"search"`
	KB       KBConfig       `yaml:"kb"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
}

// DatabaseConfig selects the document store backend. Type is either
// "embedded" (in-process store, nothing persisted) or "postgres".
type DatabaseConfig struct {
	Type          string `yaml:"type"`
	MigrateOnBoot bool   `yaml:"migrateOnBoot"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// URL returns the postgres:// form used by the migration driver.
func (p PostgresConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. When Enabled is false
// lifecycle events and analytics stay in-process.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ArticleEvents   string `yaml:"articleEvents"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SearchConfig controls ranking weights and query limits.
type SearchConfig struct {
	MaxQueryLength int           `yaml:"maxQueryLength"`
	TitleBoost     float64       `yaml:"titleBoost"`
	KeywordsBoost  float64       `yaml:"keywordsBoost"`
	BodyBoost      float64       `yaml:"bodyBoost"`
	Timeout        time.Duration `yaml:"timeout"`
}

// KBConfig seeds the runtime-replaceable knowledge base settings.
type KBConfig struct {
	SortBy                  SortConfig `yaml:"sortBy"`
	FeaturedArticlesCount   int        `yaml:"featuredArticlesCount"`
	NumTopResults           int        `yaml:"numTopResults"`
	IndexArticleBody        bool       `yaml:"indexArticleBody"`
	AllowVoting             bool       `yaml:"allowVoting"`
	AllowSuggestions        bool       `yaml:"allowSuggestions"`
	ArticleVersioning       bool       `yaml:"articleVersioning"`
	UpdateViewCountLoggedIn bool       `yaml:"updateViewCountLoggedIn"`
}

// SortConfig names the ordering used by the top-results listing.
type SortConfig struct {
	Field string `yaml:"field"`
	Order string `yaml:"order"`
}

// AuthConfig controls API key handling and anonymous rate limits.
type AuthConfig struct {
	// StaticKeys are used when no Postgres key table is available. The map
	// key is the raw API key.
	StaticKeys     map[string]StaticKey `yaml:"staticKeys"`
	AnonRateLimit  int                  `yaml:"anonRateLimit"`
	AnonRateWindow time.Duration        `yaml:"anonRateWindow"`
}

// StaticKey describes the author behind a configured API key.
type StaticKey struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	IsAdmin bool   `yaml:"isAdmin"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "embedded", "postgres":
	default:
		return fmt.Errorf("database.type must be embedded or postgres, got %q", c.Database.Type)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.KB.NumTopResults < 0 || c.KB.FeaturedArticlesCount < 0 {
		return fmt.Errorf("kb result counts must not be negative")
	}
	if c.Search.TitleBoost <= 0 || c.Search.KeywordsBoost <= 0 || c.Search.BodyBoost <= 0 {
		return fmt.Errorf("search boosts must be positive")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            4444,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Type:          "embedded",
			MigrateOnBoot: true,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "knowledgebase",
			User:            "knowledgebase",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "knowledgebase-group",
			Topics: KafkaTopics{
				ArticleEvents:   "kb.article-events",
				AnalyticsEvents: "kb.analytics-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Search: SearchConfig{
			MaxQueryLength: 500,
			TitleBoost:     10,
			KeywordsBoost:  5,
			BodyBoost:      1,
			Timeout:        2 * time.Second,
		},
		KB: KBConfig{
			SortBy:                SortConfig{Field: "view_count", Order: "desc"},
			FeaturedArticlesCount: 4,
			NumTopResults:         10,
			IndexArticleBody:      true,
			AllowVoting:           true,
			AllowSuggestions:      true,
			ArticleVersioning:     true,
		},
		Auth: AuthConfig{
			AnonRateLimit:  30,
			AnonRateWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads KB_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KB_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KB_DATABASE_TYPE"); v != "" {
		cfg.Database.Type = v
	}
	if v := os.Getenv("KB_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("KB_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("KB_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("KB_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("KB_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("KB_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("KB_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("KB_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("KB_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("KB_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KB_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("KB_INDEX_ARTICLE_BODY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.KB.IndexArticleBody = b
		}
	}
	if v := os.Getenv("KB_ARTICLE_VERSIONING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.KB.ArticleVersioning = b
		}
	}
	if v := os.Getenv("KB_ALLOW_VOTING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.KB.AllowVoting = b
		}
	}
}
