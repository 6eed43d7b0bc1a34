package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/pfrederiksen/weekly-events/internal/classify"
	"github.com/pfrederiksen/weekly-events/internal/dedup"
	"github.com/pfrederiksen/weekly-events/internal/logger"
	"github.com/pfrederiksen/weekly-events/internal/normalize"
	"github.com/pfrederiksen/weekly-events/internal/scraper"
	"github.com/pfrederiksen/weekly-events/internal/storage"
)

// EnvPrefix prefixes every environment override, e.g. WEEKLY_EVENTS_DATABASE_URL.
const EnvPrefix = "WEEKLY_EVENTS"

// DefaultEnvFile is loaded when present; a missing default file is not an error.
const DefaultEnvFile = ".env"

type StoreConfig struct {
	Backend     string `yaml:"backend"`      // file | postgres
	DataDir     string `yaml:"data_dir"`     // file backend directory
	DatabaseURL string `yaml:"database_url"` // postgres DSN
	LogLevel    string `yaml:"log_level"`    // gorm log level: silent|error|warn|info
}

type TimeConfig struct {
	// Offsets accepted on timestamps without a warning (standard, daylight).
	Offsets []string `yaml:"offsets"`
}

type DedupConfig struct {
	KeyWindow             time.Duration `yaml:"key_window"`
	SameCycleWindow       time.Duration `yaml:"same_cycle_window"`
	SameCycleThreshold    float64       `yaml:"same_cycle_threshold"`
	CrossHistoryWindow    time.Duration `yaml:"cross_history_window"`
	CrossHistoryThreshold float64       `yaml:"cross_history_threshold"`
	FailOpen              bool          `yaml:"fail_open"`
}

type SelectionConfig struct {
	MaxCount int `yaml:"max_count"`
}

type ScrapeConfig struct {
	Concurrency  int           `yaml:"concurrency"`   // sources fetched at once, 0 = all
	RequestDelay time.Duration `yaml:"request_delay"` // between requests of one source
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   uint64        `yaml:"max_retries"`
	UserAgent    string        `yaml:"user_agent"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // node-exporter textfile written after each cycle
}

// Config is the complete pipeline configuration. It is loaded once and
// passed by value to the components that need it.
type Config struct {
	Store      StoreConfig            `yaml:"store"`
	Time       TimeConfig             `yaml:"time"`
	Dedup      DedupConfig            `yaml:"dedup"`
	Classifier classify.Rules         `yaml:"classifier"`
	Selection  SelectionConfig        `yaml:"selection"`
	Scrape     ScrapeConfig           `yaml:"scrape"`
	Sources    []scraper.SourceConfig `yaml:"sources"`
	HTTP       HTTPConfig             `yaml:"http"`
	Log        LogConfig              `yaml:"log"`
	Metrics    MetricsConfig          `yaml:"metrics"`
}

// envOverrides are read from the environment after the file.
type envOverrides struct {
	StoreBackend    string `split_words:"true"`
	DataDir         string `split_words:"true"`
	DatabaseURL     string `split_words:"true"`
	LogLevel        string `split_words:"true"`
	LogFormat       string `split_words:"true"`
	HTTPAddr        string `split_words:"true"`
	MetricsTextfile string `split_words:"true"`
}

// Default returns the built-in configuration.
func Default() Config {
	d := dedup.DefaultConfig()
	fetch := scraper.DefaultFetchOptions()

	return Config{
		Store: StoreConfig{
			Backend:  storage.KindFile,
			DataDir:  "~/.weekly-events",
			LogLevel: "warn",
		},
		Time: TimeConfig{Offsets: append([]string(nil), normalize.DefaultOffsets...)},
		Dedup: DedupConfig{
			KeyWindow:             d.KeyWindow,
			SameCycleWindow:       d.SameCycleWindow,
			SameCycleThreshold:    d.SameCycleThreshold,
			CrossHistoryWindow:    d.CrossHistoryWindow,
			CrossHistoryThreshold: d.CrossHistoryThreshold,
			FailOpen:              d.FailOpen,
		},
		Classifier: classify.DefaultRules(),
		Selection:  SelectionConfig{MaxCount: 20},
		Scrape: ScrapeConfig{
			Concurrency:  4,
			RequestDelay: fetch.RequestDelay,
			Timeout:      fetch.Timeout,
			MaxRetries:   fetch.MaxRetries,
			UserAgent:    fetch.UserAgent,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  LogConfig{Level: "info", Format: logger.FormatJSON},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path uses defaults only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile loads a .env file into the process environment without
// overriding variables that are already set. A missing DefaultEnvFile is
// ignored; any other missing path is an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultEnvFile {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}

	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.Store.Backend, env.StoreBackend)
	set(&c.Store.DataDir, env.DataDir)
	set(&c.Store.DatabaseURL, env.DatabaseURL)
	set(&c.Log.Level, env.LogLevel)
	set(&c.Log.Format, env.LogFormat)
	set(&c.HTTP.Addr, env.HTTPAddr)
	set(&c.Metrics.Textfile, env.MetricsTextfile)
	return nil
}

// Validate checks ranges and required fields.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Backend) {
	case storage.KindFile:
		if strings.TrimSpace(c.Store.DataDir) == "" {
			return fmt.Errorf("store.data_dir is required for the file backend")
		}
	case storage.KindPostgres:
		if strings.TrimSpace(c.Store.DatabaseURL) == "" {
			return fmt.Errorf("store.database_url (or %s_DATABASE_URL) is required for the postgres backend", EnvPrefix)
		}
	default:
		return fmt.Errorf("store.backend must be 'file' or 'postgres', got %q", c.Store.Backend)
	}

	if len(c.Time.Offsets) == 0 {
		return fmt.Errorf("time.offsets must list at least one offset")
	}
	for _, o := range c.Time.Offsets {
		if _, err := time.Parse("-07:00", o); err != nil {
			return fmt.Errorf("time.offsets: invalid offset %q", o)
		}
	}

	d := c.Dedup
	if d.KeyWindow <= 0 || d.SameCycleWindow <= 0 || d.CrossHistoryWindow <= 0 {
		return fmt.Errorf("dedup windows must be positive")
	}
	if d.SameCycleThreshold <= 0 || d.SameCycleThreshold > 1 {
		return fmt.Errorf("dedup.same_cycle_threshold must be in (0, 1], got %v", d.SameCycleThreshold)
	}
	if d.CrossHistoryThreshold <= 0 || d.CrossHistoryThreshold > 1 {
		return fmt.Errorf("dedup.cross_history_threshold must be in (0, 1], got %v", d.CrossHistoryThreshold)
	}

	if len(c.Classifier.Categories) == 0 {
		return fmt.Errorf("classifier.categories must not be empty")
	}
	if c.Selection.MaxCount < 1 {
		return fmt.Errorf("selection.max_count must be >= 1")
	}
	if c.Scrape.Concurrency < 0 {
		return fmt.Errorf("scrape.concurrency must be >= 0")
	}
	if c.Scrape.RequestDelay < 0 || c.Scrape.Timeout < 0 {
		return fmt.Errorf("scrape durations must not be negative")
	}

	seen := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		if err := src.Validate(); err != nil {
			return err
		}
		if seen[src.Name] {
			return fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[src.Name] = true
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logger.FormatJSON, logger.FormatConsole:
	default:
		return fmt.Errorf("log.format must be 'json' or 'console', got %q", c.Log.Format)
	}
	return nil
}

// DedupParams converts the dedup section for the dedup package.
func (c Config) DedupParams() dedup.Config {
	return dedup.Config{
		KeyWindow:             c.Dedup.KeyWindow,
		SameCycleWindow:       c.Dedup.SameCycleWindow,
		SameCycleThreshold:    c.Dedup.SameCycleThreshold,
		CrossHistoryWindow:    c.Dedup.CrossHistoryWindow,
		CrossHistoryThreshold: c.Dedup.CrossHistoryThreshold,
		FailOpen:              c.Dedup.FailOpen,
	}
}

// FetchOptions converts the scrape section for scraper fetchers.
func (c Config) FetchOptions() scraper.FetchOptions {
	return scraper.FetchOptions{
		Timeout:      c.Scrape.Timeout,
		RequestDelay: c.Scrape.RequestDelay,
		MaxRetries:   c.Scrape.MaxRetries,
		UserAgent:    c.Scrape.UserAgent,
	}
}

// StoreOptions converts the store section for storage.Open.
func (c Config) StoreOptions() storage.Options {
	return storage.Options{
		Kind:        strings.ToLower(c.Store.Backend),
		DataDir:     c.Store.DataDir,
		DatabaseURL: c.Store.DatabaseURL,
		LogLevel:    c.Store.LogLevel,
	}
}

// EnabledSources returns the sources not marked disabled.
func (c Config) EnabledSources() []scraper.SourceConfig {
	out := make([]scraper.SourceConfig, 0, len(c.Sources))
	for _, s := range c.Sources {
		if !s.Disabled {
			out = append(out, s)
		}
	}
	return out
}
