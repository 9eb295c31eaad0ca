package config

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/bucketsort/internal/fileutil"
	"github.com/harrison/bucketsort/internal/logger"
)

// Config represents bucketsort configuration options
type Config struct {
	// MaxWorkers bounds the number of simultaneous copies
	MaxWorkers int `yaml:"max_workers"`

	// PrepareWorkers is the number of workers creating buckets and names (0 = 2*MaxWorkers)
	PrepareWorkers int `yaml:"prepare_workers"`

	// Retries is the number of retries after the first failed attempt
	Retries int `yaml:"retries"`

	// RetryDelay is the wait before the first retry, doubled after each retry
	RetryDelay time.Duration `yaml:"retry_delay"`

	// SkipLocked skips files held open by another process instead of retrying
	SkipLocked bool `yaml:"skip_locked"`

	// ExcludeGlob lists patterns matched against paths relative to the source root
	ExcludeGlob []string `yaml:"exclude_glob"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn/warning, error)
	LogLevel string `yaml:"log_level"`

	// LogDir enables per-run log files in this directory (empty = console only)
	LogDir string `yaml:"log_dir"`

	// HistoryDB enables the SQLite run ledger at this path (empty = disabled)
	HistoryDB string `yaml:"history_db"`

	// Report writes a Markdown (or .html) run report to this path (empty = disabled)
	Report string `yaml:"report"`

	// MaxCopiesPerSecond throttles copy starts (0 = unlimited)
	MaxCopiesPerSecond float64 `yaml:"max_copies_per_second"`
}

// DefaultMaxWorkers returns min(32, NumCPU*5).
func DefaultMaxWorkers() int {
	n := runtime.NumCPU() * 5
	if n > 32 {
		n = 32
	}
	if n < 1 {
		n = 1
	}
	return n
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		MaxWorkers:         DefaultMaxWorkers(),
		PrepareWorkers:     0, // 2*MaxWorkers
		Retries:            3,
		RetryDelay:         500 * time.Millisecond,
		SkipLocked:         false,
		ExcludeGlob:        []string{},
		LogLevel:           "info",
		LogDir:             "",
		HistoryDB:          "",
		Report:             "",
		MaxCopiesPerSecond: 0,
	}
}

// Delay is a duration read from YAML either as a Go duration string
// ("750ms", "2s") or as a number of seconds (0.5).
type Delay time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Delay) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseDelay(node.Value)
	if err != nil {
		return err
	}
	*d = Delay(parsed)
	return nil
}

// ParseDelay parses a Go duration string or a number of seconds.
func ParseDelay(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, fmt.Errorf("invalid delay %q", s)
		}
		// float64(math.MaxInt64) rounds up to 2^63, so the bound is exclusive.
		ns := secs * float64(time.Second)
		if ns >= math.MaxInt64 || ns < math.MinInt64 {
			return 0, fmt.Errorf("delay %q out of range", s)
		}
		return time.Duration(ns), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q: want seconds or a duration such as 500ms", s)
	}
	return d, nil
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Pointer fields tell an explicit zero (retries: 0) from an absent key.
	type yamlConfig struct {
		MaxWorkers         *int     `yaml:"max_workers"`
		PrepareWorkers     *int     `yaml:"prepare_workers"`
		Retries            *int     `yaml:"retries"`
		RetryDelay         *Delay   `yaml:"retry_delay"`
		SkipLocked         *bool    `yaml:"skip_locked"`
		ExcludeGlob        []string `yaml:"exclude_glob"`
		LogLevel           *string  `yaml:"log_level"`
		LogDir             *string  `yaml:"log_dir"`
		HistoryDB          *string  `yaml:"history_db"`
		Report             *string  `yaml:"report"`
		MaxCopiesPerSecond *float64 `yaml:"max_copies_per_second"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.MaxWorkers != nil {
		cfg.MaxWorkers = *yamlCfg.MaxWorkers
	}
	if yamlCfg.PrepareWorkers != nil {
		cfg.PrepareWorkers = *yamlCfg.PrepareWorkers
	}
	if yamlCfg.Retries != nil {
		cfg.Retries = *yamlCfg.Retries
	}
	if yamlCfg.RetryDelay != nil {
		cfg.RetryDelay = time.Duration(*yamlCfg.RetryDelay)
	}
	if yamlCfg.SkipLocked != nil {
		cfg.SkipLocked = *yamlCfg.SkipLocked
	}
	if yamlCfg.ExcludeGlob != nil {
		cfg.ExcludeGlob = yamlCfg.ExcludeGlob
	}
	if yamlCfg.LogLevel != nil {
		cfg.LogLevel = *yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != nil {
		cfg.LogDir = *yamlCfg.LogDir
	}
	if yamlCfg.HistoryDB != nil {
		cfg.HistoryDB = *yamlCfg.HistoryDB
	}
	if yamlCfg.Report != nil {
		cfg.Report = *yamlCfg.Report
	}
	if yamlCfg.MaxCopiesPerSecond != nil {
		cfg.MaxCopiesPerSecond = *yamlCfg.MaxCopiesPerSecond
	}

	return cfg, nil
}

// FlagOverrides carries CLI flag values. Nil fields were not set on the
// command line and leave the configuration untouched.
type FlagOverrides struct {
	MaxWorkers         *int
	PrepareWorkers     *int
	Retries            *int
	RetryDelay         *time.Duration
	SkipLocked         *bool
	ExcludeGlob        []string
	LogLevel           *string
	LogDir             *string
	HistoryDB          *string
	Report             *string
	MaxCopiesPerSecond *float64
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values; exclude patterns from
// flags are appended to the configured ones.
func (c *Config) MergeWithFlags(f FlagOverrides) {
	if f.MaxWorkers != nil {
		c.MaxWorkers = *f.MaxWorkers
	}
	if f.PrepareWorkers != nil {
		c.PrepareWorkers = *f.PrepareWorkers
	}
	if f.Retries != nil {
		c.Retries = *f.Retries
	}
	if f.RetryDelay != nil {
		c.RetryDelay = *f.RetryDelay
	}
	if f.SkipLocked != nil {
		c.SkipLocked = *f.SkipLocked
	}
	if len(f.ExcludeGlob) > 0 {
		c.ExcludeGlob = append(append([]string{}, c.ExcludeGlob...), f.ExcludeGlob...)
	}
	if f.LogLevel != nil {
		c.LogLevel = *f.LogLevel
	}
	if f.LogDir != nil {
		c.LogDir = *f.LogDir
	}
	if f.HistoryDB != nil {
		c.HistoryDB = *f.HistoryDB
	}
	if f.Report != nil {
		c.Report = *f.Report
	}
	if f.MaxCopiesPerSecond != nil {
		c.MaxCopiesPerSecond = *f.MaxCopiesPerSecond
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be >= 1, got %d", c.MaxWorkers)
	}
	if c.PrepareWorkers < 0 {
		return fmt.Errorf("prepare_workers must be >= 0, got %d", c.PrepareWorkers)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", c.Retries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must be >= 0, got %v", c.RetryDelay)
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log_level %q, must be one of: DEBUG, INFO, WARNING, ERROR (or trace)", c.LogLevel)
	}
	if c.MaxCopiesPerSecond < 0 || math.IsNaN(c.MaxCopiesPerSecond) || math.IsInf(c.MaxCopiesPerSecond, 0) {
		return fmt.Errorf("max_copies_per_second must be a finite number >= 0, got %v", c.MaxCopiesPerSecond)
	}
	if _, err := fileutil.NewExcludeFilter(c.ExcludeGlob); err != nil {
		return fmt.Errorf("invalid exclude_glob: %w", err)
	}
	return nil
}
