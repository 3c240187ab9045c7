package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"evcal/internal/atomicfile"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

const (
	defaultDatabase       = "calendar.db"
	defaultWeekStart      = "monday"
	defaultNotifySchedule = "@every 60s"
	defaultImportPolicy   = "skip"
	defaultMaxOccurrences = 5000
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
)

// Config is the top-level application configuration.
type Config struct {
	// Database is the path of the SQLite file holding events, history and settings.
	Database string `yaml:"database" json:"database"`

	// Timezone is the IANA timezone used to read and write wall-clock times
	// (CSV columns, CLI flags, calendar periods). Empty means the system zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday is treated as the first day of the week
	// in calendar views. Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start"`

	// NotifySchedule is a cron spec (e.g. "@every 60s", "* * * * *") for the
	// upcoming-event scan run by `evcal watch`.
	NotifySchedule string `yaml:"notify_schedule" json:"notify_schedule"`

	// ImportPolicy decides what happens to records that fail to decode:
	//   - "skip" (default): record them in the outcome and keep going
	//   - "abort": fail the whole import without adding anything
	ImportPolicy string `yaml:"import_policy" json:"import_policy"`

	// MaxOccurrences caps recurrence expansion per event.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database:       defaultDatabase,
		Timezone:       "",
		WeekStart:      defaultWeekStart,
		NotifySchedule: defaultNotifySchedule,
		ImportPolicy:   defaultImportPolicy,
		MaxOccurrences: defaultMaxOccurrences,
		LogLevel:       defaultLogLevel,
		LogFormat:      defaultLogFormat,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs (e.g., older versions) still behave correctly.
func (c *Config) Normalize() {
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	switch c.WeekStart = strings.ToLower(c.WeekStart); c.WeekStart {
	case "monday", "sunday":
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = defaultWeekStart
	}
	if strings.TrimSpace(c.NotifySchedule) == "" {
		c.NotifySchedule = defaultNotifySchedule
	}
	switch c.ImportPolicy = strings.ToLower(c.ImportPolicy); c.ImportPolicy {
	case "skip", "abort":
	default:
		c.ImportPolicy = defaultImportPolicy
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = defaultMaxOccurrences
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
}

// Location resolves Timezone, falling back to time.Local for an empty or
// unknown zone name.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SundayFirst reports whether weeks start on Sunday.
func (c *Config) SundayFirst() bool {
	return c.WeekStart == "sunday"
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicfile.Write(path, data, 0o600, 0o700)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
