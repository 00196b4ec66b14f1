package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "hctorder.yml"

// EnvConfig overrides the configuration path when --config is not given.
const EnvConfig = "HCTORDER_CONFIG"

// Defaults applied by Validate.
const (
	DefaultTablePath  = "counterbalance.csv"
	DefaultOutputDir  = "output"
	DefaultSQLitePath = ".hctorder/history.db"
	DefaultRedisURL   = "redis://localhost:6379/0"
	DefaultInstance   = "default"
	DefaultDateLayout = "2 January 2006"
)

// Config represents the top-level hctorder.yml configuration
type Config struct {
	Version    string           `yaml:"version"`
	Table      TableConfig      `yaml:"table"`
	Experiment ExperimentConfig `yaml:"experiment"`
	Template   TemplateConfig   `yaml:"template"`
	Output     OutputConfig     `yaml:"output"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Timezone   string           `yaml:"timezone,omitempty"` // IANA name, empty = local

	dir      string
	location *time.Location
}

// TableConfig locates the counterbalancing table.
type TableConfig struct {
	Path       string `yaml:"path"`
	Duplicates string `yaml:"duplicates,omitempty"` // "reject" (default) or "first"
	Delimiter  string `yaml:"delimiter,omitempty"`  // empty = sniff , ; and tab
}

// ExperimentConfig holds values fixed for a whole study.
type ExperimentConfig struct {
	OrderLabel string `yaml:"order_label,omitempty"`
	LabNumber  string `yaml:"lab_number,omitempty"` // default for generate --lab
}

// TemplateConfig points at the editable report template.
type TemplateConfig struct {
	Path       string `yaml:"path,omitempty"` // empty = no editable report
	DateLayout string `yaml:"date_layout,omitempty"`
}

// OutputConfig selects where session artefacts are written.
type OutputConfig struct {
	Driver string    `yaml:"driver,omitempty"` // "fs" (default) or "s3"
	Dir    string    `yaml:"dir,omitempty"`
	S3     *S3Config `yaml:"s3,omitempty"`
}

// S3Config addresses an S3 or MinIO bucket. Credentials come from the AWS
// default chain (environment, shared config, instance role).
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// ArchiveConfig selects the session history backend.
type ArchiveConfig struct {
	Driver     string       `yaml:"driver,omitempty"` // "none" (default), "sqlite" or "redis"
	SQLitePath string       `yaml:"sqlite_path,omitempty"`
	Redis      *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig addresses the shared history server.
type RedisConfig struct {
	URL      string `yaml:"url,omitempty"`
	Instance string `yaml:"instance,omitempty"` // key namespace, one per study
}

// Default returns a validated configuration with every default applied,
// used when no hctorder.yml exists.
func Default() *Config {
	c := &Config{Version: "1.0"}
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return c
}

// Validate performs strict validation on the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Table.Path == "" {
		c.Table.Path = DefaultTablePath
	}
	if c.Table.Duplicates == "" {
		c.Table.Duplicates = "reject"
	}
	if c.Table.Duplicates != "reject" && c.Table.Duplicates != "first" {
		return fmt.Errorf("table.duplicates: invalid policy %q (must be 'reject' or 'first')", c.Table.Duplicates)
	}
	if _, err := c.Table.DelimiterRune(); err != nil {
		return err
	}

	if c.Template.DateLayout == "" {
		c.Template.DateLayout = DefaultDateLayout
	}

	if err := c.Output.validate(); err != nil {
		return err
	}
	if err := c.Archive.validate(); err != nil {
		return err
	}

	loc := time.Local
	if c.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone: unknown zone %q: %w", c.Timezone, err)
		}
	}
	c.location = loc

	return nil
}

func (o *OutputConfig) validate() error {
	if o.Driver == "" {
		o.Driver = "fs"
	}
	switch o.Driver {
	case "fs":
		if o.Dir == "" {
			o.Dir = DefaultOutputDir
		}
	case "s3":
		if o.S3 == nil || o.S3.Bucket == "" {
			return fmt.Errorf("output.s3.bucket is required when output.driver is 's3'")
		}
	default:
		return fmt.Errorf("output.driver: invalid driver %q (must be 'fs' or 's3')", o.Driver)
	}
	return nil
}

func (a *ArchiveConfig) validate() error {
	if a.Driver == "" {
		a.Driver = "none"
	}
	switch a.Driver {
	case "none":
	case "sqlite":
		if a.SQLitePath == "" {
			a.SQLitePath = DefaultSQLitePath
		}
	case "redis":
		if a.Redis == nil {
			a.Redis = &RedisConfig{}
		}
		if a.Redis.URL == "" {
			a.Redis.URL = DefaultRedisURL
		}
		if a.Redis.Instance == "" {
			a.Redis.Instance = DefaultInstance
		}
		if err := ValidateInstanceName(a.Redis.Instance); err != nil {
			return fmt.Errorf("archive.redis.instance: %w", err)
		}
	default:
		return fmt.Errorf("archive.driver: invalid driver %q (must be 'none', 'sqlite' or 'redis')", a.Driver)
	}
	return nil
}

// DelimiterRune returns the configured table delimiter, or 0 to sniff.
// "tab" and `\t` both name the tab character.
func (t TableConfig) DelimiterRune() (rune, error) {
	switch t.Delimiter {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(t.Delimiter)
	if size != len(t.Delimiter) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("table.delimiter: invalid delimiter %q (must be a single character or 'tab')", t.Delimiter)
	}
	return r, nil
}

// Location returns the configured time zone (local time when unset).
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// Dir returns the directory relative paths are resolved against.
func (c *Config) Dir() string {
	return c.dir
}

// Resolve returns p relative to the configuration file's directory.
// Absolute and empty paths are returned unchanged.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// Load reads and validates hctorder.yml from the specified path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config.dir = filepath.Dir(path)
	return &config, nil
}
