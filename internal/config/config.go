package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/contact-sync/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	CRM        CRMConfig        `yaml:"crm" mapstructure:"crm"`
	HubSpot    HubSpotConfig    `yaml:"hubspot" mapstructure:"hubspot"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Trestle    TrestleConfig    `yaml:"trestle" mapstructure:"trestle"`
	Partner    PartnerConfig    `yaml:"partner" mapstructure:"partner"`
	Ledger     LedgerConfig     `yaml:"ledger" mapstructure:"ledger"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Audit      AuditConfig      `yaml:"audit" mapstructure:"audit"`
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// CRMConfig selects the CRM backend.
type CRMConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // "hubspot" or "salesforce"
}

// HubSpotConfig holds HubSpot private app settings.
type HubSpotConfig struct {
	APIKey    string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID  string  `yaml:"client_id" mapstructure:"client_id"`
	Username  string  `yaml:"username" mapstructure:"username"`
	KeyPath   string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL  string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// TrestleConfig holds reverse phone lookup settings.
type TrestleConfig struct {
	APIKey              string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL             string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit           float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	BreakerThreshold    int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// PartnerConfig holds the downstream delivery webhook.
type PartnerConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LedgerConfig selects where processed contact ids are kept.
type LedgerConfig struct {
	Backend string      `yaml:"backend" mapstructure:"backend"` // "file", "store" or "redis"
	Path    string      `yaml:"path" mapstructure:"path"`
	Redis   RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig holds the redis ledger connection.
type RedisConfig struct {
	Addr        string `yaml:"addr" mapstructure:"addr"`
	Password    string `yaml:"password" mapstructure:"password"`
	DB          int    `yaml:"db" mapstructure:"db"`
	Key         string `yaml:"key" mapstructure:"key"`
	LockTTLSecs int    `yaml:"lock_ttl_secs" mapstructure:"lock_ttl_secs"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AuditConfig selects audit sinks. Sinks lists any of "sheets", "notion",
// "store" and "log".
type AuditConfig struct {
	Script string       `yaml:"script" mapstructure:"script"`
	Sinks  []string     `yaml:"sinks" mapstructure:"sinks"`
	Sheets SheetsConfig `yaml:"sheets" mapstructure:"sheets"`
	Notion NotionConfig `yaml:"notion" mapstructure:"notion"`
}

// SheetsConfig holds the Google Sheets audit destination.
type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	Range           string `yaml:"range" mapstructure:"range"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	CredentialsJSON string `yaml:"credentials_json" mapstructure:"credentials_json"`
}

// NotionConfig holds Notion API credentials and the audit database.
type NotionConfig struct {
	Token      string `yaml:"token" mapstructure:"token"`
	DatabaseID string `yaml:"database_id" mapstructure:"database_id"`
}

// HTTPConfig bounds outbound calls.
type HTTPConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-call ceiling.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSecs) * time.Second
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Limit int `yaml:"limit" mapstructure:"limit"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures failure alerting. Alerts are only sent when
// WebhookURL is set.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinAttempts          int     `yaml:"min_attempts" mapstructure:"min_attempts"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// Enabled reports whether alerts have somewhere to go.
func (m MonitoringConfig) Enabled() bool {
	return m.WebhookURL != ""
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// secretKeys have no default, so they are bound to the environment explicitly.
var secretKeys = []string{
	"hubspot.api_key",
	"salesforce.client_id",
	"salesforce.username",
	"salesforce.key_path",
	"trestle.api_key",
	"partner.webhook_url",
	"ledger.redis.password",
	"ledger.redis.db",
	"audit.sheets.spreadsheet_id",
	"audit.sheets.credentials_file",
	"audit.sheets.credentials_json",
	"audit.notion.token",
	"audit.notion.database_id",
	"monitoring.webhook_url",
}

// legacyEnv maps bare variable names still used by existing deployments.
var legacyEnv = map[string]string{
	"hubspot.api_key": "HUBSPOT_API_KEY",
	"trestle.api_key": "TRESTLE_API_KEY",
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONTACTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range secretKeys {
		_ = v.BindEnv(key)
	}

	// Defaults
	v.SetDefault("crm.provider", "hubspot")
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.rate_limit", 10)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5)
	v.SetDefault("trestle.base_url", "https://api.trestleiq.com")
	v.SetDefault("trestle.rate_limit", 5)
	v.SetDefault("trestle.breaker_threshold", 5)
	v.SetDefault("trestle.breaker_cooldown_secs", 30)
	v.SetDefault("ledger.backend", "file")
	v.SetDefault("ledger.path", "processed_contacts.json")
	v.SetDefault("ledger.redis.addr", "localhost:6379")
	v.SetDefault("ledger.redis.key", "contact-sync:processed")
	v.SetDefault("ledger.redis.lock_ttl_secs", 1800)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "contact-sync.db")
	v.SetDefault("audit.script", "contact-sync")
	v.SetDefault("audit.sinks", []string{"log"})
	v.SetDefault("audit.sheets.range", "Sheet1!A:F")
	v.SetDefault("http.timeout_secs", 20)
	v.SetDefault("batch.limit", 50)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_attempts", 5)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	for key, name := range legacyEnv {
		if v.GetString(key) != "" {
			continue
		}
		if val := os.Getenv(name); val != "" {
			v.Set(key, val)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings needed by mode are present. Modes are
// "serve", "batch", "process", "send" and "grade".
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	needCRM, needTrestle, needPartner, needLedger := false, false, false, false
	switch mode {
	case "serve":
		needCRM, needTrestle = true, true
		if c.Server.Port <= 0 {
			add("server.port must be > 0")
		}
	case "batch":
		needCRM, needTrestle, needPartner, needLedger = true, true, true, true
		if c.Batch.Limit <= 0 {
			add("batch.limit must be > 0")
		}
	case "process":
		needCRM, needTrestle = true, true
	case "send":
		needCRM, needPartner = true, true
	case "grade":
		needCRM = true
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needCRM {
		switch c.CRM.Provider {
		case "hubspot":
			if c.HubSpot.APIKey == "" {
				add("hubspot.api_key is required")
			}
		case "salesforce":
			if c.Salesforce.ClientID == "" {
				add("salesforce.client_id is required")
			}
			if c.Salesforce.Username == "" {
				add("salesforce.username is required")
			}
			if c.Salesforce.KeyPath == "" {
				add("salesforce.key_path is required")
			}
		default:
			add("crm.provider must be hubspot or salesforce, got %q", c.CRM.Provider)
		}
	}
	if needTrestle && c.Trestle.APIKey == "" {
		add("trestle.api_key is required")
	}
	if needPartner && c.Partner.WebhookURL == "" {
		add("partner.webhook_url is required")
	}
	if needLedger {
		switch c.Ledger.Backend {
		case "file":
			if c.Ledger.Path == "" {
				add("ledger.path is required")
			}
		case "store":
		case "redis":
			if c.Ledger.Redis.Addr == "" {
				add("ledger.redis.addr is required")
			}
		default:
			add("ledger.backend must be file, store or redis, got %q", c.Ledger.Backend)
		}
	}

	for _, sink := range c.Audit.Sinks {
		switch sink {
		case "sheets":
			if c.Audit.Sheets.SpreadsheetID == "" {
				add("audit.sheets.spreadsheet_id is required")
			}
			if c.Audit.Sheets.CredentialsFile == "" && c.Audit.Sheets.CredentialsJSON == "" {
				add("audit.sheets credentials are required")
			}
		case "notion":
			if c.Audit.Notion.Token == "" || c.Audit.Notion.DatabaseID == "" {
				add("audit.notion.token and audit.notion.database_id are required")
			}
		case "store", "log":
		default:
			add("audit.sinks: unknown sink %q", sink)
		}
	}

	if c.HTTP.TimeoutSecs <= 0 || c.HTTP.TimeoutSecs > 300 {
		add("http.timeout_secs must be between 1 and 300")
	}

	if len(problems) > 0 {
		return resilience.Misconfigured("config", problems...)
	}
	return nil
}

// Redacted returns a copy with secrets masked, safe to print.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = "****"
		}
	}
	mask(&c.HubSpot.APIKey)
	mask(&c.Trestle.APIKey)
	mask(&c.Ledger.Redis.Password)
	mask(&c.Audit.Sheets.CredentialsJSON)
	mask(&c.Audit.Notion.Token)
	mask(&c.Monitoring.WebhookURL)
	if c.Store.Driver == "postgres" {
		mask(&c.Store.DatabaseURL)
	}
	c.Audit.Sinks = append([]string(nil), c.Audit.Sinks...)
	c.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	return c
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
