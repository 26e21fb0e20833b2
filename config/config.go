// Package config loads the service configuration: a YAML file for
// structure (directory templates, addresses) plus optional .env/environment
// overrides for secrets.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"f0oster/oktaldap/directory"
	"f0oster/oktaldap/directory/template"
)

// Defaults applied when the configuration omits a value.
const (
	DefaultListen        = ":1389"
	DefaultReloadSecs    = 3600
	DefaultTimeoutSecs   = 30
	DefaultLogLevelName  = "info"
	DefaultLogFormatName = "text"
)

// Config is the full service configuration.
type Config struct {
	// Listen is the LDAP listener address.
	Listen string      `yaml:"listen"`
	Admin  AdminConfig `yaml:"admin"`
	Okta   OktaConfig  `yaml:"okta"`
	Log    LogConfig   `yaml:"log"`

	// Web enables the status/metrics HTTP server when set.
	Web WebConfig `yaml:"web"`
	// History enables the Postgres sync-run log when a DSN is set.
	History HistoryConfig `yaml:"history"`
}

// AdminConfig is the administrator identity: the only identity allowed to
// search, and the holder of the configured secret.
type AdminConfig struct {
	// Username is the administrator bind DN (e.g. cn=root).
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// OktaConfig covers the upstream org and the directory mapping templates.
type OktaConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`

	// UserDN / GroupDN are mustache DN templates; their parents double as
	// the directory's base containers.
	UserDN  string `yaml:"userDN"`
	GroupDN string `yaml:"groupDN"`

	// UserAttributes / GroupAttributes override the built-in attribute
	// templates when present.
	UserAttributes  map[string]any `yaml:"userAttributes"`
	GroupAttributes map[string]any `yaml:"groupAttributes"`

	// ReloadSecs is the rebuild interval; negative disables periodic
	// reloads, zero means the default.
	ReloadSecs int `yaml:"reload_secs"`
	// TimeoutSecs bounds each upstream HTTP request.
	TimeoutSecs int `yaml:"timeout_secs"`
	// BindCacheSecs caches successful user binds; zero disables.
	BindCacheSecs int `yaml:"bind_cache_secs"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type HistoryConfig struct {
	DSN string `yaml:"dsn"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. A settings.env file in the working
// directory is honored when present.
func Load(path string) (*Config, error) {
	// Optional; real deployments usually inject the environment directly.
	_ = godotenv.Load("settings.env")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OKTA_URL"); v != "" {
		cfg.Okta.URL = v
	}
	if v := os.Getenv("OKTA_TOKEN"); v != "" {
		cfg.Okta.Token = v
	}
	if v := os.Getenv("LDAP_ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}
	if v := os.Getenv("HISTORY_DSN"); v != "" {
		cfg.History.DSN = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.Okta.ReloadSecs == 0 {
		cfg.Okta.ReloadSecs = DefaultReloadSecs
	}
	if cfg.Okta.TimeoutSecs <= 0 {
		cfg.Okta.TimeoutSecs = DefaultTimeoutSecs
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevelName
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormatName
	}
	if cfg.Okta.UserAttributes == nil {
		cfg.Okta.UserAttributes = directory.DefaultUserTemplate()
	}
	if cfg.Okta.GroupAttributes == nil {
		cfg.Okta.GroupAttributes = directory.DefaultGroupTemplate()
	}
}

func validate(cfg *Config) error {
	var missing []string
	if cfg.Okta.URL == "" {
		missing = append(missing, "okta.url")
	}
	if cfg.Okta.Token == "" {
		missing = append(missing, "okta.token")
	}
	if cfg.Okta.UserDN == "" {
		missing = append(missing, "okta.userDN")
	}
	if cfg.Okta.GroupDN == "" {
		missing = append(missing, "okta.groupDN")
	}
	if cfg.Admin.Username == "" {
		missing = append(missing, "admin.username")
	}
	if cfg.Admin.Password == "" {
		missing = append(missing, "admin.password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config values: %s", strings.Join(missing, ", "))
	}

	if _, err := directory.ParseDN(cfg.Admin.Username); err != nil {
		return fmt.Errorf("admin.username is not a valid DN: %w", err)
	}
	// The DN templates must parse as DNs with the placeholders still in
	// place: their parents become the base containers.
	if _, err := directory.ParseDN(cfg.Okta.UserDN); err != nil {
		return fmt.Errorf("okta.userDN is not a valid DN template: %w", err)
	}
	if _, err := directory.ParseDN(cfg.Okta.GroupDN); err != nil {
		return fmt.Errorf("okta.groupDN is not a valid DN template: %w", err)
	}

	// Attribute templates are static configuration: a malformed template
	// fails startup here rather than the first rebuild.
	if err := template.Validate(cfg.Okta.UserAttributes); err != nil {
		return fmt.Errorf("okta.userAttributes: %w", err)
	}
	if err := template.Validate(cfg.Okta.GroupAttributes); err != nil {
		return fmt.Errorf("okta.groupAttributes: %w", err)
	}
	return nil
}

// AdminIdentity returns the parsed administrator identity. Call after Load
// has validated the DN.
func (c *Config) AdminIdentity() (directory.AdminIdentity, error) {
	dn, err := directory.ParseDN(c.Admin.Username)
	if err != nil {
		return directory.AdminIdentity{}, err
	}
	return directory.AdminIdentity{DN: dn, Password: c.Admin.Password}, nil
}

// ReloadInterval converts reload_secs to a duration (negative disables).
func (c *Config) ReloadInterval() time.Duration {
	return time.Duration(c.Okta.ReloadSecs) * time.Second
}

// Timeout converts timeout_secs to a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Okta.TimeoutSecs) * time.Second
}

// BindCacheTTL converts bind_cache_secs to a duration (zero disables).
func (c *Config) BindCacheTTL() time.Duration {
	return time.Duration(c.Okta.BindCacheSecs) * time.Second
}

// SetupLogger builds the process logger from the log section.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
