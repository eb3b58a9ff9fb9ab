// Package config loads salestax settings from config.yaml and SALESTAX_*
// environment variables and initializes logging.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/salestax-cli/internal/report"
	"github.com/sells-group/salestax-cli/internal/taxcalc"
)

// Config holds the full application configuration.
type Config struct {
	Rates   RatesConfig   `yaml:"rates" mapstructure:"rates"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Policy  PolicyConfig  `yaml:"policy" mapstructure:"policy"`
	HTTP    HTTPConfig    `yaml:"http" mapstructure:"http"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	Session SessionConfig `yaml:"session" mapstructure:"session"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// RatesConfig configures where the rate table comes from.
type RatesConfig struct {
	Source        string `yaml:"source" mapstructure:"source"` // html or xlsx
	URL           string `yaml:"url" mapstructure:"url"`
	XLSXURL       string `yaml:"xlsx_url" mapstructure:"xlsx_url"`
	XLSXSheet     string `yaml:"xlsx_sheet" mapstructure:"xlsx_sheet"`
	XLSXSkipRows  int    `yaml:"xlsx_skip_rows" mapstructure:"xlsx_skip_rows"`
	CityColumn    int    `yaml:"city_column" mapstructure:"city_column"`
	RateColumn    int    `yaml:"rate_column" mapstructure:"rate_column"`
	CountyColumn  int    `yaml:"county_column" mapstructure:"county_column"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	Suggestions   int    `yaml:"suggestions" mapstructure:"suggestions"`
}

// CacheTTL returns the rate table cache lifetime.
func (r RatesConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLHours) * time.Hour
}

// GeocodeConfig configures the postal code dataset.
type GeocodeConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	Country       string `yaml:"country" mapstructure:"country"`
	DomainState   string `yaml:"domain_state" mapstructure:"domain_state"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	TempDir       string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// CacheTTL returns the postal dataset cache lifetime.
func (g GeocodeConfig) CacheTTL() time.Duration {
	return time.Duration(g.CacheTTLHours) * time.Hour
}

// PolicyConfig holds the remittance split constants as decimal strings.
type PolicyConfig struct {
	StateRate   string `yaml:"state_rate" mapstructure:"state_rate"`
	CountyShare string `yaml:"county_share" mapstructure:"county_share"`
}

// Build parses the policy.
func (p PolicyConfig) Build() (taxcalc.Policy, error) {
	return taxcalc.NewPolicy(p.StateRate, p.CountyShare)
}

// HTTPConfig configures outbound downloads.
type HTTPConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// StoreConfig configures the optional snapshot cache.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // none, sqlite or postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// ReportConfig configures report rendering.
type ReportConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
}

// SessionConfig configures the interactive dialogue.
type SessionConfig struct {
	// Prompts is always, auto (only when stdin is a terminal) or never.
	Prompts string `yaml:"prompts" mapstructure:"prompts"`
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
	v.SetEnvPrefix("SALESTAX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("rates.source", "html")
	v.SetDefault("rates.url", "https://www.cdtfa.ca.gov/taxes-and-fees/rates.aspx")
	v.SetDefault("rates.xlsx_url", "")
	v.SetDefault("rates.xlsx_sheet", "")
	v.SetDefault("rates.xlsx_skip_rows", 1)
	v.SetDefault("rates.city_column", 0)
	v.SetDefault("rates.rate_column", 1)
	v.SetDefault("rates.county_column", 2)
	v.SetDefault("rates.cache_ttl_hours", 24)
	v.SetDefault("rates.suggestions", 3)
	v.SetDefault("geocode.base_url", "https://download.geonames.org/export/zip")
	v.SetDefault("geocode.country", "US")
	v.SetDefault("geocode.domain_state", "CALIFORNIA")
	v.SetDefault("geocode.cache_ttl_hours", 720)
	v.SetDefault("geocode.temp_dir", "")
	v.SetDefault("policy.state_rate", "0.0725")
	v.SetDefault("policy.county_share", "0.5")
	v.SetDefault("http.user_agent", "salestax-cli/1.0")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.requests_per_second", 5)
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("report.format", "text")
	v.SetDefault("session.prompts", "always")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")

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

// Validate checks the settings a command mode depends on. Modes are
// "session", "quote", "serve" and "cache".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "session", "quote", "serve", "cache":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if _, err := c.Policy.Build(); err != nil {
		errs = append(errs, "policy: "+err.Error())
	}

	switch c.Rates.Source {
	case "html":
	case "xlsx":
		if c.Rates.XLSXURL == "" {
			errs = append(errs, "rates.xlsx_url is required when rates.source is xlsx")
		}
	default:
		errs = append(errs, "rates.source must be html or xlsx")
	}
	if c.Rates.CityColumn < 0 || c.Rates.RateColumn < 0 || c.Rates.CountyColumn < 0 {
		errs = append(errs, "rates column indexes must be >= 0")
	}

	switch c.Store.Driver {
	case "", "none":
		if mode == "cache" {
			errs = append(errs, "store.driver must be sqlite or postgres for cache commands")
		}
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, "store.driver must be none, sqlite or postgres")
	}

	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		errs = append(errs, "report.format must be text, table, json or yaml")
	}

	switch c.Session.Prompts {
	case "", "always", "auto", "never":
	default:
		errs = append(errs, "session.prompts must be always, auto or never")
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, "server.port must be > 0 and <= 65535")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger. Both formats write to stderr.
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
