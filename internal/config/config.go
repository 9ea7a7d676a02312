// ABOUTME: Configuration loading and parsing for storage-agent and crawl
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults for the agent command line and crawl settings.
const (
	DefaultListen         = "0.0.0.0"
	DefaultPort           = 9999
	DefaultMaxConnections = 50
	DefaultWorkers        = 4
	DefaultStrategy       = "random"
)

// Config represents the complete configuration file
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Crawl   CrawlConfig   `yaml:"crawl" toml:"crawl"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ServerConfig holds the agent server settings
type ServerConfig struct {
	Listen         string            `yaml:"listen" toml:"listen"`
	Port           int               `yaml:"port" toml:"port"`
	MaxConnections int               `yaml:"max_connections" toml:"max_connections"`
	Backlog        int               `yaml:"backlog" toml:"backlog"`
	ReplacePath    ReplacePathConfig `yaml:"replace_path" toml:"replace_path"`
	ReportSkipped  bool              `yaml:"report_skipped" toml:"report_skipped"`

	ReadTimeout  time.Duration `yaml:"-" toml:"-"`
	WriteTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ReadTimeoutRaw  string `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeoutRaw string `yaml:"write_timeout" toml:"write_timeout"`
}

// ReplacePathConfig is the remote-to-local prefix remapping pair
type ReplacePathConfig struct {
	Remote string `yaml:"remote" toml:"remote"`
	Local  string `yaml:"local" toml:"local"`
}

// CrawlConfig holds coordinator settings
type CrawlConfig struct {
	Agents   []string `yaml:"agents" toml:"agents"`
	Port     int      `yaml:"port" toml:"port"`
	Workers  int      `yaml:"workers" toml:"workers"`
	Root     string   `yaml:"root" toml:"root"`
	Strategy string   `yaml:"strategy" toml:"strategy"`
	Dedupe   bool     `yaml:"dedupe" toml:"dedupe"`

	RequestTimeout    time.Duration `yaml:"-" toml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout" toml:"request_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:         DefaultListen,
			Port:           DefaultPort,
			MaxConnections: DefaultMaxConnections,
			Backlog:        DefaultMaxConnections,
		},
		Crawl: CrawlConfig{
			Port:     DefaultPort,
			Workers:  DefaultWorkers,
			Strategy: DefaultStrategy,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
// Role-specific requirements are checked by ServerConfig.Validate and CrawlConfig.Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks the fields the agent server needs.
func (s *ServerConfig) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", s.Port)
	}
	if s.MaxConnections < 1 {
		return fmt.Errorf("server.max_connections must be at least 1")
	}
	if s.ReplacePath.Remote == "" || s.ReplacePath.Local == "" {
		return fmt.Errorf("server.replace_path.remote and server.replace_path.local are required")
	}
	return nil
}

// Validate checks the fields the crawl coordinator needs.
func (c *CrawlConfig) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("crawl.agents requires at least one host")
	}
	for i, host := range c.Agents {
		if strings.TrimSpace(host) == "" {
			return fmt.Errorf("crawl.agents[%d] is empty", i)
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("crawl.port %d out of range", c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("crawl.workers must be at least 1")
	}
	if c.Root == "" {
		return fmt.Errorf("crawl.root is required")
	}
	switch c.Strategy {
	case "random", "round_robin":
	default:
		return fmt.Errorf("crawl.strategy %q must be random or round_robin", c.Strategy)
	}
	return nil
}

// Validate checks logging level and format values.
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", l.Level)
	}
	switch l.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", l.Format)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"read_timeout", cfg.Server.ReadTimeoutRaw, &cfg.Server.ReadTimeout},
		{"write_timeout", cfg.Server.WriteTimeoutRaw, &cfg.Server.WriteTimeout},
		{"request_timeout", cfg.Crawl.RequestTimeoutRaw, &cfg.Crawl.RequestTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s %q must not be negative", f.name, f.raw)
		}
		*f.dst = d
	}
	return nil
}
