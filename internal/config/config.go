// Package config resolves ragassist settings from flags, environment, a YAML
// config file and a local .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. RAGASSIST_ENDPOINT.
	EnvPrefix = "RAGASSIST"

	DefaultEndpoint = "http://127.0.0.1:5000/process"
	DefaultOverlap  = "guard"
	DefaultLogLevel = "warn"
)

// OverlapPolicies lists the accepted values for the overlap setting.
var OverlapPolicies = []string{"guard", "cancel"}

var settingKeys = []string{"endpoint", "timeout", "overlap", "log_level"}

// envName maps a setting key to its environment variable, e.g. log_level to RAGASSIST_LOG_LEVEL.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

// Config holds the resolved settings.
type Config struct {
	Endpoint string        `mapstructure:"endpoint" json:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout"`
	Overlap  string        `mapstructure:"overlap" json:"overlap"`
	LogLevel string        `mapstructure:"log_level" json:"log_level"`

	// ConfigFile is the file that was read, empty when none was found.
	ConfigFile string `mapstructure:"-" json:"config_file,omitempty"`
}

// Options controls where Load looks for settings.
type Options struct {
	// ConfigFile is an explicit config path. When empty, DefaultConfigPath is
	// used if it exists.
	ConfigFile string
	// DotEnv is the .env file to load. Missing files are ignored.
	DotEnv string
	// Flags are bound by name: endpoint, timeout, overlap, log-level.
	Flags *pflag.FlagSet
}

// DefaultConfigPath returns $HOME/.config/ragassist/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "ragassist", "config.yaml")
}

// Load resolves settings with precedence flags > env > config file > .env > defaults.
// Variables from .env never override ones already set in the environment.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	v.SetDefault("endpoint", DefaultEndpoint)
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("overlap", DefaultOverlap)
	v.SetDefault("log_level", DefaultLogLevel)

	// .env values only replace the built-in defaults.
	if opts.DotEnv != "" {
		dotEnv, err := godotenv.Read(opts.DotEnv)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", opts.DotEnv, err)
		}
		for _, key := range settingKeys {
			if val, ok := dotEnv[envName(key)]; ok {
				v.SetDefault(key, val)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for key, flag := range map[string]string{
			"endpoint":  "endpoint",
			"timeout":   "timeout",
			"overlap":   "overlap",
			"log_level": "log-level",
		} {
			if f := opts.Flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}
	}

	configFile := opts.ConfigFile
	explicit := configFile != ""
	if !explicit {
		if p := DefaultConfigPath(); p != "" {
			if _, err := os.Stat(p); err == nil {
				configFile = p
			}
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.ConfigFile = configFile

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the endpoint is an absolute http(s) URL and the
// remaining values are in range.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", c.Endpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: must be an absolute http or https URL", c.Endpoint)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	c.Overlap = strings.ToLower(strings.TrimSpace(c.Overlap))
	if !lo.Contains(OverlapPolicies, c.Overlap) {
		return fmt.Errorf("unsupported overlap policy %q: use one of %s", c.Overlap, strings.Join(OverlapPolicies, ", "))
	}
	return nil
}
