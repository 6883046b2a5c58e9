package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-weaver/internal/log"
)

// Config holds the project configuration of a weaving run
type Config struct {
	// Input is the assembly container to weave
	Input string `yaml:"input" env:"WEAVER_INPUT"`

	// Output is where the woven container is written. Empty means Input.
	Output string `yaml:"output" env:"WEAVER_OUTPUT"`

	// WeaverConfig is the path of the XML file holding the weaver element
	WeaverConfig string `yaml:"weaver_config" env:"WEAVER_CONFIG"`

	// ReferenceDirs are searched for the containers of referenced assemblies
	ReferenceDirs []string `yaml:"reference_dirs" env:"WEAVER_REFERENCE_DIRS"`

	// DebugSymbols keeps sequence points when writing the output
	DebugSymbols bool `yaml:"debug_symbols" env:"WEAVER_DEBUG_SYMBOLS"`

	// Logging
	LogLevel string `yaml:"log_level" env:"WEAVER_LOG_LEVEL"`
	JSONLogs bool   `yaml:"json_logs" env:"WEAVER_JSON_LOGS"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		WeaverConfig:  "weaver.xml",
		ReferenceDirs: []string{"."},
		DebugSymbols:  true,
		LogLevel:      "info",
	}
}

// globalConfigFilePath returns the global config file path (~/.weaver/config.yaml)
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ProjectConfigFile
	}
	return filepath.Join(home, ProjectConfigFile)
}

// ProjectConfigFile is the project-level config file path
const ProjectConfigFile = ".weaver/config.yaml"

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.weaver/config.yaml)
// 3. Global config (~/.weaver/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{globalConfigFilePath(), ProjectConfigFile} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WEAVER_INPUT"); v != "" {
		cfg.Input = v
	}
	if v := os.Getenv("WEAVER_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("WEAVER_CONFIG"); v != "" {
		cfg.WeaverConfig = v
	}
	if v := os.Getenv("WEAVER_REFERENCE_DIRS"); v != "" {
		cfg.ReferenceDirs = filepath.SplitList(v)
	}
	if v := os.Getenv("WEAVER_DEBUG_SYMBOLS"); v != "" {
		cfg.DebugSymbols = parseBool(v)
	}
	if v := os.Getenv("WEAVER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("WEAVER_JSON_LOGS"); v != "" {
		cfg.JSONLogs = parseBool(v)
	}
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	for _, dir := range c.ReferenceDirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("reference_dirs must not contain empty entries")
		}
	}
	if c.Output != "" && c.Input == "" {
		return fmt.Errorf("output requires input")
	}
	return nil
}

// OutputPath returns Output, or Input when no output is configured.
func (c *Config) OutputPath() string {
	if c.Output != "" {
		return c.Output
	}
	return c.Input
}

// Level returns the configured log level. Validate must have succeeded.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func parseBool(s string) bool {
	return s == "true" || s == "1" || s == "yes"
}
