// Package config loads and validates the skill-evaluator framework
// configuration: logging, the default container runtime image and pull
// policy, execution defaults, report output, and safety limits.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the skill-evaluator framework configuration.
type Config struct {
	Framework FrameworkConfig `yaml:"framework"`
	Docker    DockerConfig    `yaml:"docker"`
	Execution ExecutionConfig `yaml:"execution"`
	Reporting ReportingConfig `yaml:"reporting"`
	Safety    SafetyConfig    `yaml:"safety"`
}

// FrameworkConfig contains general logging settings.
type FrameworkConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// DockerConfig contains container-runtime defaults.
type DockerConfig struct {
	DefaultImage string `yaml:"default_image"`
	PullPolicy   string `yaml:"pull_policy"`
}

// ExecutionConfig contains run/evaluate defaults.
type ExecutionConfig struct {
	DefaultMemory         string `yaml:"default_memory"`
	DefaultTimeoutSeconds int    `yaml:"default_timeout_seconds"`
	DefaultTrials         int    `yaml:"default_trials"`
	MaxWorkers            int    `yaml:"max_workers"` // 0 = auto (capacity planner)
}

// ReportingConfig contains output settings.
type ReportingConfig struct {
	OutputDir string   `yaml:"output_dir"`
	Formats   []string `yaml:"formats"`
}

// SafetyConfig contains safety limits beyond the per-container timeout.
type SafetyConfig struct {
	MaxBatchDuration time.Duration `yaml:"max_batch_duration"`
}

// DefaultConfig returns the built-in defaults, overridable by a config
// file and then by environment variables.
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Docker: DockerConfig{
			DefaultImage: "docker-skill-evaluator:minimal",
			PullPolicy:   "if_not_present",
		},
		Execution: ExecutionConfig{
			DefaultMemory:         "1g",
			DefaultTimeoutSeconds: 300,
			DefaultTrials:         1,
			MaxWorkers:            0,
		},
		Reporting: ReportingConfig{
			OutputDir: "./results",
			Formats:   []string{"markdown", "json"},
		},
		Safety: SafetyConfig{
			MaxBatchDuration: 0, // unbounded: the spec honors only per-container timeouts
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// path doesn't exist. Environment variables referenced in the file (e.g.
// $SKILL_EVAL_LOG_LEVEL) are expanded before parsing.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "skill-evaluator.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if level := os.Getenv("SKILL_EVAL_LOG_LEVEL"); level != "" {
			cfg.Framework.LogLevel = level
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if level := os.Getenv("SKILL_EVAL_LOG_LEVEL"); level != "" {
		cfg.Framework.LogLevel = level
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks that required fields are populated and within range.
func (c *Config) Validate() error {
	if c.Docker.DefaultImage == "" {
		return fmt.Errorf("config: docker.default_image is required")
	}
	if c.Reporting.OutputDir == "" {
		return fmt.Errorf("config: reporting.output_dir is required")
	}
	if c.Execution.DefaultTimeoutSeconds < 1 {
		return fmt.Errorf("config: execution.default_timeout_seconds must be at least 1")
	}
	if c.Execution.DefaultTrials < 1 {
		return fmt.Errorf("config: execution.default_trials must be at least 1")
	}
	return nil
}
