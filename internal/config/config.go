package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Catalog        CatalogConfig        `mapstructure:"catalog"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Similarity     SimilarityConfig     `mapstructure:"similarity"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Retention      RetentionConfig      `mapstructure:"retention"`
	Monitoring     MonitoringConfig     `mapstructure:"monitoring"`
	Security       SecurityConfig       `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig selects one of the two relational backends. Driver is
// "postgres" or "sqlite"; URL applies to postgres, Path to sqlite.
type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver"`
	URL            string        `mapstructure:"url"`
	Path           string        `mapstructure:"path"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "postgres":
		if c.URL == "" {
			return fmt.Errorf("database.url required for postgres driver")
		}
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("database.path required for sqlite driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Driver)
	}
	return nil
}

type RedisConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	URL        string        `mapstructure:"url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topics  struct {
		BehaviorEvents string `mapstructure:"behavior_events"`
		ContentScores  string `mapstructure:"content_scores"`
	} `mapstructure:"topics"`
}

// CatalogConfig points at the external media catalog service that backs the
// catalog recommendation source.
type CatalogConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SimilarityConfig struct {
	ContentWeight   float64       `mapstructure:"content_weight"`
	GenreWeight     float64       `mapstructure:"genre_weight"`
	MinScore        float64       `mapstructure:"min_score"`
	CandidateLimit  int           `mapstructure:"candidate_limit"`
	HistoryLimit    int           `mapstructure:"history_limit"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	EmbeddingGenres int           `mapstructure:"embedding_genres"`
}

type RecommendationConfig struct {
	DefaultLimit   int           `mapstructure:"default_limit"`
	CandidateLimit int           `mapstructure:"candidate_limit"`
	ResponseTTL    time.Duration `mapstructure:"response_ttl"`
}

type RetentionConfig struct {
	Days int `mapstructure:"days"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Database.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")

	// Database defaults
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "./data/engine.db")
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_time", "15m")
	viper.SetDefault("database.max_lifetime", "1h")
	viper.SetDefault("database.connect_timeout", "10s")

	// Redis defaults
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.timeout", "5s")

	// Kafka defaults
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topics.behavior_events", "behavior-events")
	viper.SetDefault("kafka.topics.content_scores", "content-scores")

	// Catalog defaults
	viper.SetDefault("catalog.base_url", "")
	viper.SetDefault("catalog.timeout", "5s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Similarity defaults
	viper.SetDefault("similarity.content_weight", 0.7)
	viper.SetDefault("similarity.genre_weight", 0.3)
	viper.SetDefault("similarity.min_score", 0.1)
	viper.SetDefault("similarity.candidate_limit", 20)
	viper.SetDefault("similarity.history_limit", 50)
	viper.SetDefault("similarity.cache_ttl", "24h")
	viper.SetDefault("similarity.embedding_genres", 5)

	// Recommendation defaults
	viper.SetDefault("recommendation.default_limit", 12)
	viper.SetDefault("recommendation.candidate_limit", 50)
	viper.SetDefault("recommendation.response_ttl", "15m")

	// Retention defaults
	viper.SetDefault("retention.days", 90)

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")

	// Security defaults
	viper.SetDefault("security.cors.allowed_origins", []string{"*"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"*"})
}
