package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/outreach-mate/outreach-cli/pkg/apollo"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Apollo    ApolloConfig    `yaml:"apollo" mapstructure:"apollo"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	LinkedIn  LinkedInConfig  `yaml:"linkedin" mapstructure:"linkedin"`
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Email     EmailConfig     `yaml:"email" mapstructure:"email"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	Path        string     `yaml:"path" mapstructure:"path"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig sizes the postgres connection pool.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// ApolloConfig holds Apollo.io API settings.
type ApolloConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	MaxContacts int     `yaml:"max_contacts" mapstructure:"max_contacts"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings for email generation.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	MaxTokens   int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// LinkedInConfig configures the browser scraping session.
type LinkedInConfig struct {
	Username           string `yaml:"username" mapstructure:"username"`
	Password           string `yaml:"password" mapstructure:"password"`
	Headless           bool   `yaml:"headless" mapstructure:"headless"`
	ProxyURL           string `yaml:"proxy_url" mapstructure:"proxy_url"`
	CookiesFile        string `yaml:"cookies_file" mapstructure:"cookies_file"`
	NavTimeoutSecs     int    `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	CheckpointWaitSecs int    `yaml:"checkpoint_wait_secs" mapstructure:"checkpoint_wait_secs"`
}

// CrawlConfig configures the website crawl stage.
type CrawlConfig struct {
	MaxPages          int     `yaml:"max_pages" mapstructure:"max_pages"`
	MaxDepth          int     `yaml:"max_depth" mapstructure:"max_depth"`
	SnippetMaxChars   int     `yaml:"snippet_max_chars" mapstructure:"snippet_max_chars"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// PipelineConfig configures enrichment behavior.
type PipelineConfig struct {
	MaxProfileScrapes int  `yaml:"max_profile_scrapes" mapstructure:"max_profile_scrapes"`
	AllowZeroContacts bool `yaml:"allow_zero_contacts" mapstructure:"allow_zero_contacts"`
}

// BatchConfig configures CSV batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// EmailConfig configures outreach email generation and delivery.
type EmailConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	DryRun   bool   `yaml:"dry_run" mapstructure:"dry_run"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "outreach.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.concurrency", 5)
	v.SetDefault("crawl.max_pages", 10)
	v.SetDefault("crawl.max_depth", 2)
	v.SetDefault("crawl.snippet_max_chars", 1000)
	v.SetDefault("crawl.timeout_secs", 30)
	v.SetDefault("crawl.requests_per_second", 1.0)
	v.SetDefault("crawl.burst", 2)
	v.SetDefault("crawl.max_retries", 3)
	v.SetDefault("apollo.base_url", apollo.DefaultBaseURL)
	v.SetDefault("apollo.max_contacts", 10)
	v.SetDefault("apollo.rate_per_sec", 0.5)
	v.SetDefault("apollo.burst", 1)
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("linkedin.headless", true)
	v.SetDefault("linkedin.cookies_file", "linkedin_cookies.json")
	v.SetDefault("linkedin.nav_timeout_secs", 30)
	v.SetDefault("linkedin.checkpoint_wait_secs", 30)
	v.SetDefault("pipeline.max_profile_scrapes", 5)
	v.SetDefault("pipeline.allow_zero_contacts", false)
	v.SetDefault("email.provider", "gmail")
	v.SetDefault("email.dry_run", true)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields the given mode depends on. Modes: "run"
// (single or batch enrichment), "email" (draft generation and sending),
// "serve" (HTTP API).
func (c *Config) Validate(mode string) error {
	var problems []string

	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.Path == "" {
				problems = append(problems, "store.path is required for the sqlite driver")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		default:
			problems = append(problems, "store.driver must be sqlite or postgres")
		}
	}

	switch mode {
	case "run":
		checkStore()
		if c.Gemini.Key == "" {
			problems = append(problems, "gemini.key is required")
		}
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50 {
			problems = append(problems, "batch.concurrency must be between 1 and 50")
		}
		if c.Pipeline.MaxProfileScrapes < 0 {
			problems = append(problems, "pipeline.max_profile_scrapes must be >= 0")
		}
	case "email":
		checkStore()
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if !c.Email.DryRun && c.Email.Provider != "gmail" && c.Email.Provider != "outlook" {
			problems = append(problems, "email.provider must be gmail or outlook")
		}
	case "serve":
		checkStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50 {
			problems = append(problems, "batch.concurrency must be between 1 and 50")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
