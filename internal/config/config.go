// Package config handles configuration loading for termweave.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for termweave.
type Config struct {
	Limits    LimitsConfig    `mapstructure:"limits"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Approval  ApprovalConfig  `mapstructure:"approval"`
	History   HistoryConfig   `mapstructure:"history"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

// LimitsConfig holds the orchestrator capacity ceilings.
type LimitsConfig struct {
	MaxAgents     int `mapstructure:"max_agents"`
	MaxTerminals  int `mapstructure:"max_terminals"`
	MaxQueueSize  int `mapstructure:"max_queue_size"`
	MaxExecutions int `mapstructure:"max_executions"`
}

// RuntimeConfig holds runtime loop settings.
type RuntimeConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	EventBuffer  int           `mapstructure:"event_buffer"`
}

// ApprovalConfig holds approval workflow settings.
type ApprovalConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	MaxPerAgent int           `mapstructure:"max_per_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// HistoryConfig holds the history store settings.
type HistoryConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// SimulatorConfig holds simulated-executor settings.
type SimulatorConfig struct {
	Latency time.Duration `mapstructure:"latency"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (TERMWEAVE_*)
// 2. Project config (.termweave.yaml in current directory or parent)
// 3. User config (~/.config/termweave/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("TERMWEAVE")
	v.AutomaticEnv()
	v.BindEnv("limits.max_agents", "TERMWEAVE_MAX_AGENTS")
	v.BindEnv("limits.max_terminals", "TERMWEAVE_MAX_TERMINALS")
	v.BindEnv("history.db_path", "TERMWEAVE_DB_PATH")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.History.DBPath = os.ExpandEnv(cfg.History.DBPath)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.History.DBPath = os.ExpandEnv(cfg.History.DBPath)
	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("limits.max_agents", 10)
	v.SetDefault("limits.max_terminals", 5)
	v.SetDefault("limits.max_queue_size", 100)
	v.SetDefault("limits.max_executions", 5)

	v.SetDefault("runtime.tick_interval", "50ms")
	v.SetDefault("runtime.event_buffer", 256)

	v.SetDefault("approval.max_requests", 50)
	v.SetDefault("approval.max_per_agent", 5)
	v.SetDefault("approval.timeout", "5m")

	v.SetDefault("history.db_path", "")

	v.SetDefault("simulator.latency", "10ms")
}

// getUserConfigDir returns the XDG config directory for termweave.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "termweave")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "termweave")
	}
	return filepath.Join(home, ".config", "termweave")
}

// findProjectConfig searches for .termweave.yaml in the current
// directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".termweave.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Limits: LimitsConfig{
			MaxAgents:     10,
			MaxTerminals:  5,
			MaxQueueSize:  100,
			MaxExecutions: 5,
		},
		Runtime: RuntimeConfig{
			TickInterval: 50 * time.Millisecond,
			EventBuffer:  256,
		},
		Approval: ApprovalConfig{
			MaxRequests: 50,
			MaxPerAgent: 5,
			Timeout:     5 * time.Minute,
		},
		History: HistoryConfig{
			DBPath: "",
		},
		Simulator: SimulatorConfig{
			Latency: 10 * time.Millisecond,
		},
	}
}
