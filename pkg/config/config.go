// Package config loads rulekit settings from defaults, an optional config
// file and RULEKIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/spf13/viper"

	"github.com/ormasoftchile/rulekit/pkg/kernel/resources"
	"github.com/ormasoftchile/rulekit/pkg/kernel/schema"
	"github.com/ormasoftchile/rulekit/pkg/logging"
)

const (
	// AppName is the config file base name searched for when no file is
	// given.
	AppName = "rulekit"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "RULEKIT"
)

// Settings holds the user-level configuration.
type Settings struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	// Workflow overrides.
	MaxThreads          int               `mapstructure:"max_threads"`
	GlobalResources     map[string]any    `mapstructure:"global_resources"`
	WildcardConstraints map[string]string `mapstructure:"wildcard_constraints"`
	AllTemp             bool              `mapstructure:"all_temp"`

	// Expansion.
	SkipResources []string `mapstructure:"skip_resources"`
	Attempt       int      `mapstructure:"attempt"`

	// ConfigFile is the file the settings were read from, if any.
	ConfigFile string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "human")
	v.SetDefault("log_file", "")
	v.SetDefault("max_threads", 0)
	v.SetDefault("all_temp", false)
	v.SetDefault("skip_resources", []string{})
	v.SetDefault("attempt", 1)
}

// Load reads the settings. An empty path searches for rulekit.yaml in the
// working directory; a missing file there is not an error.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		s.ConfigFile = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks value ranges and resource types.
func (s *Settings) Validate() error {
	if s.MaxThreads < 0 {
		return fmt.Errorf("max_threads must not be negative, got %d", s.MaxThreads)
	}
	if s.Attempt < 1 {
		return fmt.Errorf("attempt must be at least 1, got %d", s.Attempt)
	}
	for name, raw := range s.GlobalResources {
		if _, err := resources.FromAny(raw); err != nil {
			return fmt.Errorf("global_resources.%s: %w", name, err)
		}
	}
	return nil
}

// Logging returns the logger options.
func (s *Settings) Logging() logging.Options {
	return logging.Options{Level: s.LogLevel, Format: s.LogFormat, File: s.LogFile}
}

// SkipSet returns the resources whose evaluation is deferred.
func (s *Settings) SkipSet() map[string]bool {
	if len(s.SkipResources) == 0 {
		return nil
	}
	out := make(map[string]bool, len(s.SkipResources))
	for _, name := range s.SkipResources {
		out[name] = true
	}
	return out
}

// Apply overlays the settings on the workflow-level values of doc. It runs
// before rules are registered, because wildcard constraints and all-temp
// mode take effect when outputs are declared.
func (s *Settings) Apply(doc *schema.Workflow) {
	if doc.Config == nil {
		doc.Config = &schema.Config{}
	}
	c := doc.Config
	if s.MaxThreads > 0 {
		c.MaxThreads = s.MaxThreads
	}
	if len(s.GlobalResources) > 0 {
		if c.GlobalResources == nil {
			c.GlobalResources = map[string]any{}
		}
		maps.Copy(c.GlobalResources, s.GlobalResources)
	}
	if len(s.WildcardConstraints) > 0 {
		if c.WildcardConstraints == nil {
			c.WildcardConstraints = map[string]string{}
		}
		maps.Copy(c.WildcardConstraints, s.WildcardConstraints)
	}
	if s.AllTemp {
		c.AllTemp = true
	}
}
