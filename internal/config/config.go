package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/blocktrace/blocktrace/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Backend    BackendConfig    `yaml:"backend" mapstructure:"backend"`
	NFT        NFTConfig        `yaml:"nft" mapstructure:"nft"`
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Auth       AuthConfig       `yaml:"auth" mapstructure:"auth"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	ESG        ESGConfig        `yaml:"esg" mapstructure:"esg"`
	Demo       DemoConfig       `yaml:"demo" mapstructure:"demo"`
	Story      StoryConfig      `yaml:"story" mapstructure:"story"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// BackendConfig configures the provenance and ESG service client.
type BackendConfig struct {
	URL         string                     `yaml:"url" mapstructure:"url"`
	TimeoutSecs int                        `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retry       resilience.RetrySettings   `yaml:"retry" mapstructure:"retry"`
	Circuit     resilience.CircuitSettings `yaml:"circuit" mapstructure:"circuit"`
}

// Timeout returns the per-request timeout.
func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// NFTConfig configures the passport NFT service client.
type NFTConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// GeocodeConfig configures location resolution for distance refinement.
type GeocodeConfig struct {
	Provider     string  `yaml:"provider" mapstructure:"provider"` // nominatim or cascade
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	NominatimURL string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	GoogleKey    string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	CacheTTLDays int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
}

// CacheTTL returns the geocode cache lifetime; zero keeps entries forever.
func (c GeocodeConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLDays) * 24 * time.Hour
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AuthConfig configures login strategies and session tokens.
type AuthConfig struct {
	Method                   string   `yaml:"method" mapstructure:"method"`
	Methods                  []string `yaml:"methods" mapstructure:"methods"`
	TokenSecret              string   `yaml:"token_secret" mapstructure:"token_secret"`
	SessionTTLHours          int      `yaml:"session_ttl_hours" mapstructure:"session_ttl_hours"`
	IdentitySecret           string   `yaml:"identity_secret" mapstructure:"identity_secret"`
	IdentityMaxTTLHours      int      `yaml:"identity_max_ttl_hours" mapstructure:"identity_max_ttl_hours"`
	PlugConnectTimeoutSecs   int      `yaml:"plug_connect_timeout_secs" mapstructure:"plug_connect_timeout_secs"`
	PlugPrincipalTimeoutSecs int      `yaml:"plug_principal_timeout_secs" mapstructure:"plug_principal_timeout_secs"`
	TokenFile                string   `yaml:"token_file" mapstructure:"token_file"`
}

// SessionTTL returns the issued session token lifetime.
func (c AuthConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// ESGConfig configures fleet ESG reporting.
type ESGConfig struct {
	Refine            bool `yaml:"refine" mapstructure:"refine"`
	RefineConcurrency int  `yaml:"refine_concurrency" mapstructure:"refine_concurrency"`
	RefineTimeoutSecs int  `yaml:"refine_timeout_secs" mapstructure:"refine_timeout_secs"`
	FetchConcurrency  int  `yaml:"fetch_concurrency" mapstructure:"fetch_concurrency"`
}

// DemoConfig configures the demo timeline.
type DemoConfig struct {
	ScenarioFile string `yaml:"scenario_file" mapstructure:"scenario_file"`
	Seed         int64  `yaml:"seed" mapstructure:"seed"`
}

// StoryConfig configures optional LLM narration of product stories.
type StoryConfig struct {
	AnthropicKey string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	Model        string `yaml:"model" mapstructure:"model"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MonitoringConfig configures the ESG score change monitor.
type MonitoringConfig struct {
	Enabled           bool   `yaml:"enabled" mapstructure:"enabled"`
	Principal         string `yaml:"principal" mapstructure:"principal"`
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	ChangeThreshold   int    `yaml:"change_threshold" mapstructure:"change_threshold"`
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
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
	v.SetEnvPrefix("BLOCKTRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("backend.url", "http://localhost:4943/api/backend")
	v.SetDefault("backend.timeout_secs", 30)
	v.SetDefault("backend.retry.max_attempts", 3)
	v.SetDefault("backend.retry.initial_backoff_ms", 250)
	v.SetDefault("backend.retry.max_backoff_ms", 5000)
	v.SetDefault("backend.circuit.failure_threshold", 5)
	v.SetDefault("backend.circuit.reset_timeout_secs", 30)
	v.SetDefault("nft.url", "http://localhost:4943/api/nft")
	v.SetDefault("geocode.provider", "nominatim")
	v.SetDefault("geocode.user_agent", "blocktrace/1.0 (+https://blocktrace.app)")
	v.SetDefault("geocode.rate_limit", 1.0)
	v.SetDefault("geocode.cache_ttl_days", 90)
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.path", "blocktrace.db")
	v.SetDefault("auth.method", "internet-identity")
	v.SetDefault("auth.methods", []string{"internet-identity", "plug-wallet"})
	v.SetDefault("auth.session_ttl_hours", 24)
	v.SetDefault("auth.identity_max_ttl_hours", 7*24)
	v.SetDefault("auth.plug_connect_timeout_secs", 30)
	v.SetDefault("auth.plug_principal_timeout_secs", 5)
	v.SetDefault("auth.token_file", ".blocktrace/session")
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.identity_secret", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.request_timeout_secs", 60)
	v.SetDefault("esg.refine_concurrency", 4)
	v.SetDefault("esg.refine_timeout_secs", 20)
	v.SetDefault("esg.fetch_concurrency", 8)
	v.SetDefault("demo.seed", 42)
	v.SetDefault("story.anthropic_key", "")
	v.SetDefault("story.model", "claude-haiku-4-5-20251001")
	v.SetDefault("story.timeout_secs", 30)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.change_threshold", 5)
	v.SetDefault("monitoring.principal", "")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings required by mode ("serve", "monitor" or
// "cli") and reports every problem at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}
	if c.Backend.URL == "" {
		errs = append(errs, "backend.url is required")
	}
	switch c.Geocode.Provider {
	case "nominatim", "cascade", "":
	default:
		errs = append(errs, fmt.Sprintf("unknown geocode.provider %q", c.Geocode.Provider))
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Auth.TokenSecret == "" {
			errs = append(errs, "auth.token_secret is required")
		}
	case "monitor":
		if c.Monitoring.Principal == "" {
			errs = append(errs, "monitoring.principal is required")
		}
		if c.Monitoring.ChangeThreshold < 0 {
			errs = append(errs, "monitoring.change_threshold must be >= 0")
		}
	case "cli":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
