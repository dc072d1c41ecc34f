// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > embedded > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "15s", "30s", "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Encoding selects the wire format of posted batches.
type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingCBOR Encoding = "cbor"
)

// Config holds all monitor configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Collection CollectionConfig `yaml:"collection"`
	Disk       DiskConfig       `yaml:"disk"`
	Sensors    SensorsConfig    `yaml:"sensors"`
	GPU        GPUConfig        `yaml:"gpu"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds ingest endpoint settings. An empty URL disables sending.
type ServerConfig struct {
	URL          string   `yaml:"url"`
	MachineToken string   `yaml:"machine_token"`
	Encoding     Encoding `yaml:"encoding"`
}

// CollectionConfig holds metric collection settings.
type CollectionConfig struct {
	Interval      Duration `yaml:"interval"`
	BatchInterval Duration `yaml:"batch_interval"`
	Workers       int      `yaml:"workers"`
	TopProcesses  int      `yaml:"top_processes"`
	// SysRoot overrides "/sys" for every sysfs reader.
	SysRoot string `yaml:"sys_root"`
}

// DiskConfig holds SMART probing settings.
type DiskConfig struct {
	SmartEnabled bool     `yaml:"smart_enabled"`
	SmartTTL     Duration `yaml:"smart_ttl"`
	SmartctlPath string   `yaml:"smartctl_path"`
}

// SensorsConfig holds hardware sensor settings.
type SensorsConfig struct {
	MinRefreshInterval Duration `yaml:"min_refresh_interval"`
}

// GPUConfig holds GPU probe settings.
type GPUConfig struct {
	NVMLEnabled bool `yaml:"nvml_enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Encoding: EncodingJSON,
		},
		Collection: CollectionConfig{
			Interval:      Duration{15 * time.Second},
			BatchInterval: Duration{30 * time.Second},
			Workers:       4,
			TopProcesses:  10,
		},
		Disk: DiskConfig{
			SmartEnabled: true,
			SmartTTL:     Duration{60 * time.Second},
		},
		Sensors: SensorsConfig{
			MinRefreshInterval: Duration{2 * time.Second},
		},
		GPU: GPUConfig{
			NVMLEnabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// CLIOverrides holds values from command-line flags.
// Zero values are treated as "not set" and skipped.
type CLIOverrides struct {
	URL      string
	Token    string
	LogLevel string
	Interval time.Duration
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// DefaultPath returns the preferred location for a new config file, the
// first entry of the search order used by Locate.
func DefaultPath() string {
	return configSearchPaths()[0]
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > external YAML file > embedded bytes > defaults.
//
// An optional configPath argument controls external-file discovery:
//   - omitted: auto-discover via Locate()
//   - explicit value: use that path ("" means no external file)
func LoadLayered(cli CLIOverrides, embedded []byte, configPath ...string) (*Config, error) {
	cfg := DefaultConfig()

	if len(embedded) > 0 {
		if err := yaml.Unmarshal(embedded, cfg); err != nil {
			return nil, fmt.Errorf("parsing embedded config: %w", err)
		}
	}

	var filePath string
	if len(configPath) > 0 {
		filePath = configPath[0]
	} else {
		filePath = Locate()
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file %s: %w", filePath, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if cli.URL != "" {
		cfg.Server.URL = cli.URL
	}
	if cli.Token != "" {
		cfg.Server.MachineToken = cli.Token
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.Interval > 0 {
		cfg.Collection.Interval = Duration{cli.Interval}
	}

	return cfg, nil
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

const envPrefix = "NOVAMON_"

// applyEnvOverrides applies NOVAMON_* environment variables. Malformed
// numeric or duration values are ignored and leave the previous layer intact.
func applyEnvOverrides(cfg *Config) {
	if v := getenv("SERVER_URL"); v != "" {
		cfg.Server.URL = v
	}
	if v := getenv("MACHINE_TOKEN"); v != "" {
		cfg.Server.MachineToken = v
	}
	if v := getenv("ENCODING"); v != "" {
		cfg.Server.Encoding = Encoding(strings.ToLower(v))
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := getenv("LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := getenv("SYS_ROOT"); v != "" {
		cfg.Collection.SysRoot = v
	}
	if v := getenv("INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Collection.Interval = Duration{d}
		}
	}
	if v := getenv("WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Collection.Workers = n
		}
	}
	if v := getenv("SMART_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Disk.SmartEnabled = b
		}
	}
	if v := getenv("NVML_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.GPU.NVMLEnabled = b
		}
	}
}

func getenv(name string) string {
	return os.Getenv(envPrefix + name)
}

// SendingEnabled reports whether batches should be posted anywhere.
func (c *Config) SendingEnabled() bool {
	return c.Server.URL != ""
}

// Validate checks that the configuration is usable. Server settings are only
// checked when sending is enabled; plain-HTTP URLs are allowed for localhost.
func (c *Config) Validate() error {
	if c.Collection.Interval.Duration <= 0 {
		return fmt.Errorf("collection interval must be positive (got: %s)", c.Collection.Interval.Duration)
	}
	if c.Collection.BatchInterval.Duration <= 0 {
		return fmt.Errorf("batch interval must be positive (got: %s)", c.Collection.BatchInterval.Duration)
	}
	if c.Collection.TopProcesses < 0 {
		return fmt.Errorf("top_processes must not be negative (got: %d)", c.Collection.TopProcesses)
	}
	if c.Disk.SmartTTL.Duration < 0 {
		return fmt.Errorf("smart_ttl must not be negative (got: %s)", c.Disk.SmartTTL.Duration)
	}
	if c.Sensors.MinRefreshInterval.Duration < 0 {
		return fmt.Errorf("sensors min_refresh_interval must not be negative (got: %s)", c.Sensors.MinRefreshInterval.Duration)
	}

	if !c.SendingEnabled() {
		return nil
	}
	switch c.Server.Encoding {
	case EncodingJSON, EncodingCBOR:
	default:
		return fmt.Errorf("unknown encoding %q (want json or cbor)", c.Server.Encoding)
	}
	if c.Server.MachineToken == "" {
		return fmt.Errorf("machine token is required when a server URL is set")
	}
	if !strings.HasPrefix(c.Server.URL, "https://") {
		if !strings.Contains(c.Server.URL, "localhost") && !strings.Contains(c.Server.URL, "127.0.0.1") {
			return fmt.Errorf("server URL must use HTTPS (got: %s)", c.Server.URL)
		}
	}
	return nil
}
