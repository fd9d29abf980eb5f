package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	CRM       CRMConfig       `yaml:"crm"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Refresh   RefreshConfig   `yaml:"refresh"`
}

type ServerConfig struct {
	Port              string `yaml:"port"`
	Environment       string `yaml:"environment"`
	AllowedOrigin     string `yaml:"allowed_origin"`
	TrustProxyDepth   int    `yaml:"trust_proxy_depth"`
	StaticDir         string `yaml:"static_dir"`
	AdminToken        string `yaml:"-"`
	RequestLogEnabled bool   `yaml:"request_log_enabled"`
}

type DatabaseConfig struct {
	URL string `yaml:"-"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
	DB       int    `yaml:"db"`
}

func (r RedisConfig) GetRedisAddr() string {
	return r.Addr
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type CRMConfig struct {
	BaseURL      string        `yaml:"base_url"`
	ClientID     string        `yaml:"-"`
	ClientSecret string        `yaml:"-"`
	UserType     string        `yaml:"user_type"`
	LocationID   string        `yaml:"location_id"`
	LeadSource   string        `yaml:"lead_source"`
	Timeout      time.Duration `yaml:"timeout"`
	CustomFields CustomFields  `yaml:"custom_fields"`
}

// CustomFields maps inbound form fields to CRM custom field ids.
type CustomFields struct {
	AgeRange    string `yaml:"age_range"`
	Conditions  string `yaml:"conditions"`
	Preferences string `yaml:"preferences"`
	Notes       string `yaml:"notes"`
}

type RateLimitConfig struct {
	GlobalLimit  int           `yaml:"global_limit"`
	GlobalWindow time.Duration `yaml:"global_window"`
	IPLimit      int           `yaml:"ip_limit"`
	IPWindow     time.Duration `yaml:"ip_window"`
	IPAlgorithm  string        `yaml:"ip_algorithm"` // "fixed_window" "sliding_window" "token_bucket"
}

type RefreshConfig struct {
	Interval      time.Duration `yaml:"interval"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	ExpirySkew    time.Duration `yaml:"expiry_skew"`
	LockTTL       time.Duration `yaml:"lock_ttl"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8964",
			Environment:     "development",
			TrustProxyDepth: 1,
			StaticDir:       "public",
		},
		CRM: CRMConfig{
			Timeout: 15 * time.Second,
		},
		RateLimit: RateLimitConfig{
			GlobalLimit:  10,
			GlobalWindow: 10 * time.Second,
			IPLimit:      5,
			IPWindow:     time.Minute,
			IPAlgorithm:  "fixed_window",
		},
		Refresh: RefreshConfig{
			Interval:      12 * time.Hour,
			RetryInterval: 5 * time.Minute,
			ExpirySkew:    10 * time.Minute,
			LockTTL:       2 * time.Minute,
		},
	}
}

// Load reads the optional YAML file at path and then applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.Environment, "ENVIRONMENT")
	setString(&c.Server.AllowedOrigin, "ALLOWED_ORIGIN")
	setString(&c.Server.StaticDir, "STATIC_DIR")
	setString(&c.Server.AdminToken, "ADMIN_TOKEN")

	setString(&c.Database.URL, "DATABASE_URL")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	setString(&c.CRM.BaseURL, "BASE_URL")
	setString(&c.CRM.ClientID, "CLIENT_ID")
	setString(&c.CRM.ClientSecret, "CLIENT_SECRET")
	setString(&c.CRM.UserType, "USER_TYPE")
	setString(&c.CRM.LocationID, "LOCATION_ID")
	setString(&c.CRM.LeadSource, "LEAD_SOURCE")
	setString(&c.CRM.CustomFields.AgeRange, "CUSTOM_FIELD_AGE_RANGE")
	setString(&c.CRM.CustomFields.Conditions, "CUSTOM_FIELD_CONDITIONS")
	setString(&c.CRM.CustomFields.Preferences, "CUSTOM_FIELD_PREFERENCES")
	setString(&c.CRM.CustomFields.Notes, "CUSTOM_FIELD_NOTES")

	setString(&c.RateLimit.IPAlgorithm, "IP_RATE_ALGORITHM")

	ints := []struct {
		dst *int
		key string
	}{
		{&c.Server.TrustProxyDepth, "TRUST_PROXY_DEPTH"},
		{&c.Redis.DB, "REDIS_DB"},
		{&c.RateLimit.GlobalLimit, "GLOBAL_RATE_LIMIT"},
		{&c.RateLimit.IPLimit, "IP_RATE_LIMIT"},
	}
	for _, e := range ints {
		if err := setInt(e.dst, e.key); err != nil {
			return err
		}
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.CRM.Timeout, "UPSTREAM_TIMEOUT"},
		{&c.RateLimit.GlobalWindow, "GLOBAL_RATE_WINDOW"},
		{&c.RateLimit.IPWindow, "IP_RATE_WINDOW"},
		{&c.Refresh.Interval, "REFRESH_INTERVAL"},
		{&c.Refresh.RetryInterval, "REFRESH_RETRY_INTERVAL"},
		{&c.Refresh.ExpirySkew, "REFRESH_EXPIRY_SKEW"},
		{&c.Refresh.LockTTL, "REFRESH_LOCK_TTL"},
	}
	for _, e := range durations {
		if err := setDuration(e.dst, e.key); err != nil {
			return err
		}
	}

	if v, ok := os.LookupEnv("REQUEST_LOG_ENABLED"); ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid REQUEST_LOG_ENABLED %q: %w", v, err)
		}
		c.Server.RequestLogEnabled = enabled
	}

	return nil
}

// ValidateGateway checks the settings the request gateway cannot run without.
func (c *Config) ValidateGateway() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.CRM.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.RateLimit.GlobalLimit <= 0 || c.RateLimit.GlobalWindow <= 0 {
		return errors.New("global rate limit and window must be positive")
	}
	if c.RateLimit.IPLimit <= 0 || c.RateLimit.IPWindow <= 0 {
		return errors.New("ip rate limit and window must be positive")
	}
	switch c.RateLimit.IPAlgorithm {
	case "", "fixed_window", "sliding_window", "token_bucket":
	default:
		return fmt.Errorf("unknown IP_RATE_ALGORITHM %q (want fixed_window, sliding_window or token_bucket)", c.RateLimit.IPAlgorithm)
	}
	if c.Server.TrustProxyDepth < 0 {
		return errors.New("trust proxy depth must not be negative")
	}

	return nil
}

// ValidateRefresher checks the settings the token refresher cannot run without.
func (c *Config) ValidateRefresher() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.CRM.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if c.CRM.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if c.CRM.ClientSecret == "" {
		missing = append(missing, "CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Refresh.Interval <= 0 || c.Refresh.RetryInterval <= 0 {
		return errors.New("refresh interval and retry interval must be positive")
	}

	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

// setDuration accepts Go durations ("90s") or a bare number of seconds.
func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
