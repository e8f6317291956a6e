// Package config provides the configuration model for the connector
// runtime. A single Config is loaded from YAML at startup and passed
// explicitly to every component; there is no ambient global state.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

// Config is the root configuration for a connector run.
type Config struct {
	// Source names the data source family, e.g. "amazon_ads". It is the
	// first path segment under the destination root prefix.
	Source string `mapstructure:"source" yaml:"source"`

	// Bucket is the destination object-storage bucket.
	Bucket string `mapstructure:"bucket" yaml:"bucket"`

	// RootPrefix is prepended to every destination key.
	RootPrefix string `mapstructure:"root_prefix" yaml:"root_prefix"`

	// PathTemplate overrides the default destination key layout. It may
	// reference {report_type}, {country_code}, {year}, {month} and {day}.
	PathTemplate string `mapstructure:"path_template" yaml:"path_template"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
	Retry   RetryConfig   `mapstructure:"retry" yaml:"retry"`

	// Snowflake, when set, enables the warehouse sink for report kinds
	// with a warehouse_table.
	Snowflake SnowflakeConfig `mapstructure:"snowflake" yaml:"snowflake"`

	// Countries holds per-country endpoints and identifiers, keyed by
	// ISO country code.
	Countries map[string]CountryConfig `mapstructure:"countries" yaml:"countries"`

	// Reports holds the report-kind catalog, keyed by report type name.
	Reports map[string]ReportConfig `mapstructure:"reports" yaml:"reports"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Encoding    string `mapstructure:"encoding" yaml:"encoding"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// HTTPConfig configures the shared HTTP client.
type HTTPConfig struct {
	// Timeout bounds every single request, including report downloads.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// RequestsPerSecond throttles outgoing calls per vendor host.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// RetryConfig configures the bounded retry policy shared by all
// adapters. Quota and transient errors never retry past MaxAttempts.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialDelay    time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	Multiplier      float64       `mapstructure:"multiplier" yaml:"multiplier"`
	RandomizeFactor float64       `mapstructure:"randomize_factor" yaml:"randomize_factor"`
}

// CountryConfig holds per-country endpoints and account identifiers.
type CountryConfig struct {
	AuthURL    string `mapstructure:"auth_url" yaml:"auth_url"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	ProfileURL string `mapstructure:"profile_url" yaml:"profile_url"`

	// MarketplaceIDs is required by the SP-API report body.
	MarketplaceIDs []string `mapstructure:"marketplace_ids" yaml:"marketplace_ids"`

	// InstanceID and EntityID identify an Amazon Marketing Cloud
	// instance and its advertiser entity.
	InstanceID string `mapstructure:"instance_id" yaml:"instance_id"`
	EntityID   string `mapstructure:"entity_id" yaml:"entity_id"`

	// Region is the AWS region for SigV4 signing.
	Region string `mapstructure:"region" yaml:"region"`

	// ReportService distinguishes vendor account types when resolving
	// an advertising profile, e.g. "vendor" or "seller".
	ReportService string `mapstructure:"report_service" yaml:"report_service"`

	// TimeWindowType is the AMC time window mode, e.g. "EXPLICIT".
	TimeWindowType string `mapstructure:"time_window_type" yaml:"time_window_type"`

	ContentType string `mapstructure:"content_type" yaml:"content_type"`
}

// SnowflakeConfig identifies the optional warehouse target.
type SnowflakeConfig struct {
	Account   string `mapstructure:"account" yaml:"account"`
	User      string `mapstructure:"user" yaml:"user"`
	Password  string `mapstructure:"password" yaml:"password"`
	Database  string `mapstructure:"database" yaml:"database"`
	Schema    string `mapstructure:"schema" yaml:"schema"`
	Warehouse string `mapstructure:"warehouse" yaml:"warehouse"`
	Role      string `mapstructure:"role" yaml:"role"`
}

// Enabled reports whether a warehouse target is configured.
func (s SnowflakeConfig) Enabled() bool {
	return s.Account != ""
}

// Failure policies for a report kind.
const (
	OnFailureRaise  = "raise"
	OnFailureRecord = "record"
)

// Lookback period types for backfill expansion.
const (
	PeriodDay  = "DAY"
	PeriodWeek = "WEEK"
)

// ReportConfig describes one report kind: which vendor serves it, the
// request payload, the polling budget and the failure policy.
type ReportConfig struct {
	Vendor string `mapstructure:"vendor" yaml:"vendor"`

	// Table is the destination table name; it is both a key segment and
	// the file-name stem.
	Table string `mapstructure:"table" yaml:"table"`

	// Payload is the vendor-specific request body template. Adapters
	// merge the requested date window into it.
	Payload map[string]interface{} `mapstructure:"payload" yaml:"payload"`

	// Columns lists the metric columns requested from the vendor.
	Columns []string `mapstructure:"columns" yaml:"columns"`

	TimeUnit string `mapstructure:"time_unit" yaml:"time_unit"`

	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts" yaml:"max_poll_attempts"`

	// OnFailure selects the terminal-failure policy: "raise" aborts the
	// run, "record" appends to the failure log and continues.
	OnFailure string `mapstructure:"on_failure" yaml:"on_failure"`

	// LookbackDays and LookbackPeriodType drive backfill expansion and
	// latest-available-date discovery.
	LookbackDays       int    `mapstructure:"lookback_days" yaml:"lookback_days"`
	LookbackPeriodType string `mapstructure:"lookback_period_type" yaml:"lookback_period_type"`

	// Format is an optional artifact format hint overriding URL-suffix
	// detection: "gzip-json", "orc" or "csv".
	Format string `mapstructure:"format" yaml:"format"`

	// ExpectedColumns, when set, is the sorted schema the materialized
	// output must match.
	ExpectedColumns []string `mapstructure:"expected_columns" yaml:"expected_columns"`

	// CampaignWindow marks SP-API kinds whose date window moves into
	// reportOptions instead of dataStartTime/dataEndTime.
	CampaignWindow bool `mapstructure:"campaign_window" yaml:"campaign_window"`

	// Rules names the normalization rules for this report kind; empty
	// selects the standard set.
	Rules []string `mapstructure:"rules" yaml:"rules"`

	// WarehouseTable, when set, mirrors the materialized output into
	// this Snowflake table as well.
	WarehouseTable string `mapstructure:"warehouse_table" yaml:"warehouse_table"`
}

// Load reads and validates a Config from a YAML file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "read config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "parse config file")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "json"
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 5 * time.Minute
	}
	if c.HTTP.RequestsPerSecond == 0 {
		c.HTTP.RequestsPerSecond = 5
	}
	if c.HTTP.Burst == 0 {
		c.HTTP.Burst = 10
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 5
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = time.Second
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 30 * time.Second
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 2.0
	}

	for name, rc := range c.Reports {
		if rc.PollInterval == 0 {
			rc.PollInterval = 5 * time.Minute
		}
		if rc.MaxPollAttempts == 0 {
			rc.MaxPollAttempts = 15
		}
		if rc.OnFailure == "" {
			rc.OnFailure = OnFailureRaise
		}
		if rc.LookbackPeriodType == "" {
			rc.LookbackPeriodType = PeriodDay
		}
		c.Reports[name] = rc
	}
}

// Validate checks that the configuration is internally consistent.
// All violations are configuration errors.
func (c *Config) Validate() error {
	if c.Source == "" {
		return errors.New(errors.ErrorTypeConfig, "source is required")
	}
	if c.Bucket == "" {
		return errors.New(errors.ErrorTypeConfig, "bucket is required")
	}
	for name, rc := range c.Reports {
		if rc.Vendor == "" {
			return errors.New(errors.ErrorTypeConfig, "report has no vendor").
				WithDetail("report_type", name)
		}
		if rc.Table == "" {
			return errors.New(errors.ErrorTypeConfig, "report has no table").
				WithDetail("report_type", name)
		}
		if rc.OnFailure != OnFailureRaise && rc.OnFailure != OnFailureRecord {
			return errors.New(errors.ErrorTypeConfig, "on_failure must be raise or record").
				WithDetail("report_type", name).
				WithDetail("on_failure", rc.OnFailure)
		}
		if rc.LookbackPeriodType != PeriodDay && rc.LookbackPeriodType != PeriodWeek {
			return errors.New(errors.ErrorTypeConfig, "lookback_period_type must be DAY or WEEK").
				WithDetail("report_type", name)
		}
		// Empty means sniff the artifact; anything else must be a
		// known decoder hint.
		switch rc.Format {
		case "", "gzip-json", "orc", "csv":
		default:
			return errors.New(errors.ErrorTypeConfig, "format must be gzip-json, orc or csv").
				WithDetail("report_type", name).
				WithDetail("format", rc.Format)
		}
	}
	return nil
}

// Country returns the configuration for a country code.
func (c *Config) Country(code string) (CountryConfig, error) {
	cc, ok := c.Countries[code]
	if !ok {
		return CountryConfig{}, errors.New(errors.ErrorTypeConfig, "unknown country code").
			WithDetail("country_code", code)
	}
	return cc, nil
}

// Report returns the configuration for a report type.
func (c *Config) Report(reportType string) (ReportConfig, error) {
	rc, ok := c.Reports[reportType]
	if !ok {
		return ReportConfig{}, errors.New(errors.ErrorTypeConfig, "unknown report type").
			WithDetail("report_type", reportType)
	}
	return rc, nil
}
