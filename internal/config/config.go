/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Database backend selection for the recording journal.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Margins are the timing constants of the schedule loop.
type Margins struct {
	LeadIn         time.Duration `yaml:"lead_in"`
	EarlyStop      time.Duration `yaml:"early_stop"`
	EndGuard       time.Duration `yaml:"end_guard"`
	Cooldown       time.Duration `yaml:"cooldown"`
	IdleInterval   time.Duration `yaml:"idle_interval"`
	DeferThreshold time.Duration `yaml:"defer_threshold"`
}

// DefaultMargins returns the margins used when nothing is configured.
func DefaultMargins() Margins {
	return Margins{
		LeadIn:         10 * time.Second,
		EarlyStop:      10 * time.Second,
		EndGuard:       10 * time.Second,
		Cooldown:       5 * time.Second,
		IdleInterval:   3600 * time.Second,
		DeferThreshold: 3610 * time.Second,
	}
}

// Config covers process level configuration read from a .env file, an
// optional YAML file and environment variables, in increasing precedence.
type Config struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	// OBS websocket
	OBSHost     string        `yaml:"obs_host"`
	OBSPort     int           `yaml:"obs_port"`
	OBSPassword string        `yaml:"obs_password"`
	OBSScene    string        `yaml:"obs_scene"` // optional, selected before each recording
	OBSTimeout  time.Duration `yaml:"obs_timeout"`

	// EPGStation
	EPGStationURL string        `yaml:"epgstation_url"`
	ChannelID     int64         `yaml:"channel_id"`
	ReserveLimit  int           `yaml:"reserve_limit"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`

	Margins Margins `yaml:"margins"`

	// Status server; empty disables it
	StatusBind string `yaml:"status_bind"`

	// Recording journal; empty DSN disables it
	JournalBackend DatabaseBackend `yaml:"journal_backend"`
	JournalDSN     string          `yaml:"journal_dsn"`

	// NATS event forwarding; empty URL disables it
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	// Tracing configuration
	TracingEnabled    bool    `yaml:"tracing_enabled"`
	OTLPEndpoint      string  `yaml:"otlp_endpoint"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate"`

	ConfigFile        string   `yaml:"-"`
	LegacyEnvWarnings []string `yaml:"-"`
}

// Defaults returns a config populated with built-in defaults only.
func Defaults() *Config {
	return &Config{
		Environment:       "production",
		LogLevel:          "",
		OBSHost:           "localhost",
		OBSPort:           4455,
		OBSTimeout:        10 * time.Second,
		EPGStationURL:     "http://localhost:8888",
		ReserveLimit:      100,
		HTTPTimeout:       10 * time.Second,
		Margins:           DefaultMargins(),
		StatusBind:        "127.0.0.1:9120",
		JournalBackend:    DatabaseSQLite,
		NATSSubject:       "obsrec.events",
		OTLPEndpoint:      "localhost:4317",
		TracingSampleRate: 1.0,
	}
}

// Load reads configuration, applies defaults, and validates the result.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit YAML file path. A non-empty path takes
// precedence over OBSREC_CONFIG_FILE.
func LoadFile(path string) (*Config, error) {
	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()

	if path == "" {
		path = os.Getenv("OBSREC_CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	cfg.overlayEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) overlayEnv() {
	c.Environment = getEnvAny([]string{"OBSREC_ENV"}, c.Environment)
	c.LogLevel = getEnvAny([]string{"OBSREC_LOG_LEVEL"}, c.LogLevel)

	c.OBSHost = getEnvAny([]string{"OBSREC_OBS_HOST", "HOST_NAME"}, c.OBSHost)
	c.OBSPort = getEnvIntAny([]string{"OBSREC_OBS_PORT", "PORT"}, c.OBSPort)
	c.OBSPassword = getEnvAny([]string{"OBSREC_OBS_PASSWORD", "PASSWORD"}, c.OBSPassword)
	c.OBSScene = getEnvAny([]string{"OBSREC_OBS_SCENE"}, c.OBSScene)
	c.OBSTimeout = getEnvDurationAny([]string{"OBSREC_OBS_TIMEOUT"}, c.OBSTimeout)

	c.EPGStationURL = strings.TrimRight(getEnvAny([]string{"OBSREC_EPGSTATION_URL", "EPGSTATION_URL"}, c.EPGStationURL), "/")
	c.ChannelID = getEnvInt64Any([]string{"OBSREC_CHANNEL_ID", "CHANNEL_ID"}, c.ChannelID)
	c.ReserveLimit = getEnvIntAny([]string{"OBSREC_RESERVE_LIMIT"}, c.ReserveLimit)
	c.HTTPTimeout = getEnvDurationAny([]string{"OBSREC_HTTP_TIMEOUT"}, c.HTTPTimeout)

	c.Margins.LeadIn = getEnvDurationAny([]string{"OBSREC_LEAD_IN"}, c.Margins.LeadIn)
	c.Margins.EarlyStop = getEnvDurationAny([]string{"OBSREC_EARLY_STOP"}, c.Margins.EarlyStop)
	c.Margins.EndGuard = getEnvDurationAny([]string{"OBSREC_END_GUARD"}, c.Margins.EndGuard)
	c.Margins.Cooldown = getEnvDurationAny([]string{"OBSREC_COOLDOWN"}, c.Margins.Cooldown)
	c.Margins.IdleInterval = getEnvDurationAny([]string{"OBSREC_IDLE_INTERVAL"}, c.Margins.IdleInterval)
	c.Margins.DeferThreshold = getEnvDurationAny([]string{"OBSREC_DEFER_THRESHOLD"}, c.Margins.DeferThreshold)

	c.StatusBind = getEnvPresentAny([]string{"OBSREC_STATUS_BIND"}, c.StatusBind)

	c.JournalBackend = DatabaseBackend(getEnvAny([]string{"OBSREC_JOURNAL_BACKEND"}, string(c.JournalBackend)))
	c.JournalDSN = getEnvAny([]string{"OBSREC_JOURNAL_DSN"}, c.JournalDSN)

	c.NATSURL = getEnvAny([]string{"OBSREC_NATS_URL"}, c.NATSURL)
	c.NATSSubject = getEnvAny([]string{"OBSREC_NATS_SUBJECT"}, c.NATSSubject)

	c.TracingEnabled = getEnvBoolAny([]string{"OBSREC_TRACING_ENABLED"}, c.TracingEnabled)
	c.OTLPEndpoint = getEnvAny([]string{"OBSREC_OTLP_ENDPOINT"}, c.OTLPEndpoint)
	c.TracingSampleRate = getEnvFloatAny([]string{"OBSREC_TRACING_SAMPLE_RATE"}, c.TracingSampleRate)
}

// Validate checks that the config can drive the schedule loop.
func (c *Config) Validate() error {
	if c.ChannelID <= 0 {
		return fmt.Errorf("OBSREC_CHANNEL_ID must be provided as a positive integer")
	}
	if c.OBSHost == "" {
		return fmt.Errorf("OBSREC_OBS_HOST (or HOST_NAME) must be provided")
	}
	if c.OBSPort <= 0 || c.OBSPort > 65535 {
		return fmt.Errorf("obs port %d out of range", c.OBSPort)
	}
	if c.EPGStationURL == "" {
		return fmt.Errorf("OBSREC_EPGSTATION_URL must be provided")
	}
	if c.ReserveLimit <= 0 {
		return fmt.Errorf("reserve limit must be positive, got %d", c.ReserveLimit)
	}

	m := c.Margins
	for name, d := range map[string]time.Duration{
		"lead_in":         m.LeadIn,
		"early_stop":      m.EarlyStop,
		"end_guard":       m.EndGuard,
		"cooldown":        m.Cooldown,
		"idle_interval":   m.IdleInterval,
		"defer_threshold": m.DeferThreshold,
	} {
		if d <= 0 {
			return fmt.Errorf("margin %s must be positive, got %s", name, d)
		}
	}
	if m.DeferThreshold < m.IdleInterval {
		return fmt.Errorf("defer_threshold (%s) must not be shorter than idle_interval (%s)", m.DeferThreshold, m.IdleInterval)
	}

	if c.JournalDSN != "" {
		switch c.JournalBackend {
		case DatabasePostgres, DatabaseMySQL, DatabaseSQLite:
		default:
			return fmt.Errorf("unsupported journal backend %q", c.JournalBackend)
		}
	}

	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be within [0, 1], got %v", c.TracingSampleRate)
	}
	return nil
}

// OBSAddress returns host:port of the OBS websocket server.
func (c *Config) OBSAddress() string {
	return fmt.Sprintf("%s:%d", c.OBSHost, c.OBSPort)
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"HOST_NAME":      "use OBSREC_OBS_HOST",
		"PORT":           "use OBSREC_OBS_PORT",
		"PASSWORD":       "use OBSREC_OBS_PASSWORD",
		"CHANNEL_ID":     "use OBSREC_CHANNEL_ID",
		"EPGSTATION_URL": "use OBSREC_EPGSTATION_URL",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvPresentAny is getEnvAny but honours a variable explicitly set to "".
func getEnvPresentAny(keys []string, def string) string {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

func getEnvInt64Any(keys []string, def int64) int64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvDurationAny accepts Go durations ("90s", "1h") or bare seconds.
func getEnvDurationAny(keys []string, def time.Duration) time.Duration {
	for _, k := range keys {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return def
}
