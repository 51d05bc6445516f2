// Package config holds the tool's optional YAML configuration. Every value
// has a working default, so the tool runs without a config file.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Profiles ProfilesConfig `yaml:"profiles"`
	Colord   ColordConfig   `yaml:"colord"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Log      LogConfig      `yaml:"log"`
}

// ProfilesConfig controls where profiles are written and how new ones are built
type ProfilesConfig struct {
	// Dir is the directory new profiles are saved to. Defaults to the
	// per-user data dir plus "icc".
	Dir string `yaml:"dir"`
	// Reference is the profile assigned to devices with no profile at all.
	Reference string `yaml:"reference"`
}

// ColordConfig contains settings for talking to the colord daemon
type ColordConfig struct {
	// RegistrationTimeout bounds the wait for colord to detect a freshly
	// written profile file.
	RegistrationTimeout Duration `yaml:"registration_timeout"`
	// PollInterval is the sleep between detection attempts.
	PollInterval Duration `yaml:"poll_interval"`
	// RateLimitRPS limits service calls across a multi-device run.
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
}

// LedgerConfig contains operation history settings
type LedgerConfig struct {
	// Path enables the SQLite operation ledger when set.
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses a configuration file, filling unset values with
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Profiles.Dir == "" {
		cfg.Profiles.Dir = filepath.Join(userDataDir(), "icc")
	}
	if cfg.Profiles.Reference == "" {
		cfg.Profiles.Reference = "sRGB.icc"
	}
	if cfg.Colord.RegistrationTimeout == 0 {
		cfg.Colord.RegistrationTimeout = Duration(4 * time.Second)
	}
	if cfg.Colord.PollInterval == 0 {
		cfg.Colord.PollInterval = Duration(10 * time.Millisecond)
	}
	if cfg.Colord.RateLimitRPS == 0 {
		cfg.Colord.RateLimitRPS = 10.0
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// userDataDir resolves the per-user data directory, XDG first.
func userDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
