package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Index     IndexConfig     `mapstructure:"index"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	External  ExternalConfig  `mapstructure:"external"`
	Search    SearchConfig    `mapstructure:"search"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Taxonomy  TaxonomyConfig  `mapstructure:"taxonomy"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DSN returns the driver-specific connection string. For postgres a full URL
// (DATABASE_URL) wins over the individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		if c.URL != "" {
			return c.URL
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

type IndexConfig struct {
	Backend string `mapstructure:"backend"` // memory or qdrant
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type ExternalConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Whitelist   []string      `mapstructure:"whitelist"`
}

type SearchConfig struct {
	IncludeExternalByDefault    bool          `mapstructure:"include_external_by_default"`
	AutosaveDocuments           bool          `mapstructure:"autosave_documents"`
	MinimumRelevanceForAutosave float64       `mapstructure:"minimum_relevance_for_autosave"`
	ResultLimitDefault          int           `mapstructure:"result_limit_default"`
	ResultLimitMax              int           `mapstructure:"result_limit_max"`
	TagSimilarityThreshold      float64       `mapstructure:"tag_similarity_threshold"`
	BranchTimeout               time.Duration `mapstructure:"branch_timeout"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addrs    []string      `mapstructure:"addrs"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // s3, r2, s3compatible
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	Prefix    string `mapstructure:"prefix"`
}

type IngestConfig struct {
	Workers   int `mapstructure:"workers"`
	BatchSize int `mapstructure:"batch_size"`
}

type TaxonomyConfig struct {
	Path string `mapstructure:"path"`
	// RefreshInterval bounds how stale the classifier's cached taxonomy may get.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// DefaultWhitelist is the seed set of trusted research domains.
var DefaultWhitelist = []string{
	"cleancookingalliance.org",
	"who.int",
	"worldbank.org",
	"seforall.org",
	"mecs.org.uk",
	"sciencedirect.com",
	"mdpi.com",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.cors.allow_all_origins", false)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/hearth.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "hearth")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("embedding.name", "default")
	v.SetDefault("embedding.provider", "ollama")
	v.SetDefault("embedding.model", "all-minilm")
	v.SetDefault("embedding.base_url", "http://localhost:11434")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.timeout", 15*time.Second)

	v.SetDefault("index.backend", "memory")

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "documents")

	v.SetDefault("external.enabled", true)
	v.SetDefault("external.provider", "perplexity")
	v.SetDefault("external.base_url", "https://api.perplexity.ai")
	v.SetDefault("external.model", "llama-3.1-sonar-large-128k-online")
	v.SetDefault("external.temperature", 0.1)
	v.SetDefault("external.max_tokens", 1024)
	v.SetDefault("external.timeout", 30*time.Second)
	v.SetDefault("external.whitelist", DefaultWhitelist)

	v.SetDefault("search.include_external_by_default", true)
	v.SetDefault("search.autosave_documents", false)
	v.SetDefault("search.minimum_relevance_for_autosave", 0.7)
	v.SetDefault("search.result_limit_default", 10)
	v.SetDefault("search.result_limit_max", 100)
	v.SetDefault("search.tag_similarity_threshold", 0.8)
	v.SetDefault("search.branch_timeout", 45*time.Second)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addrs", []string{"localhost:6379"})
	v.SetDefault("cache.ttl", time.Hour)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.type", "s3compatible")
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucket", "hearth")
	v.SetDefault("storage.prefix", "corpus/")

	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.batch_size", 50)

	v.SetDefault("taxonomy.path", "./configs/taxonomy.yaml")
	v.SetDefault("taxonomy.refresh_interval", "5m")
}

// Load reads configuration from file, .env and environment.
// An empty configPath searches ./configs and . for config.yaml.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("database.password", "DATABASE_PASSWORD")
	_ = v.BindEnv("embedding.api_key", "EMBEDDING_API_KEY", "JINA_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("embedding.base_url", "EMBEDDING_BASE_URL")
	_ = v.BindEnv("external.api_key", "PERPLEXITY_API_KEY")
	_ = v.BindEnv("qdrant.host", "QDRANT_HOST")
	_ = v.BindEnv("qdrant.port", "QDRANT_PORT")
	_ = v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	_ = v.BindEnv("cache.password", "REDIS_PASSWORD")
	_ = v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	_ = v.BindEnv("storage.secret_key", "S3_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Embedding.ResolveEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that defaults alone cannot guarantee.
func (c *Config) Validate() error {
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}
	switch c.Index.Backend {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("index: unknown backend %q", c.Index.Backend)
	}
	s := c.Search
	if s.TagSimilarityThreshold < 0 || s.TagSimilarityThreshold > 1 {
		return fmt.Errorf("search: tag_similarity_threshold must be within [0,1], got %v", s.TagSimilarityThreshold)
	}
	if s.MinimumRelevanceForAutosave < 0 || s.MinimumRelevanceForAutosave > 1 {
		return fmt.Errorf("search: minimum_relevance_for_autosave must be within [0,1], got %v", s.MinimumRelevanceForAutosave)
	}
	if s.ResultLimitDefault <= 0 {
		return fmt.Errorf("search: result_limit_default must be positive")
	}
	if s.ResultLimitMax < s.ResultLimitDefault {
		return fmt.Errorf("search: result_limit_max (%d) is below result_limit_default (%d)", s.ResultLimitMax, s.ResultLimitDefault)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache: addrs is required when enabled")
	}
	if c.Ingest.Workers <= 0 || c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest: workers and batch_size must be positive")
	}
	return nil
}

// GetStorageConfig returns the object storage settings, filling in the region
// default used by S3-compatible services.
func (c *Config) GetStorageConfig() StorageConfig {
	sc := c.Storage
	if sc.Region == "" && sc.Type != "r2" {
		sc.Region = "us-east-1"
	}
	return sc
}
