package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ecspool/weaver/internal/metadata"
)

// FileNames are the config files looked up in the working directory
var FileNames = []string{"weaver.yml", "weaver.yaml"}

// EnvPrefix prefixes environment overrides, e.g. WEAVER_JOBS
const EnvPrefix = "WEAVER"

// Config represents the weaver configuration
type Config struct {
	Input      string           `mapstructure:"input"`
	Output     string           `mapstructure:"output"`
	Jobs       int              `mapstructure:"jobs"`
	Convention ConventionConfig `mapstructure:"convention"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Log        LogConfig        `mapstructure:"log"`

	// File is the config file that was read, empty when defaults were used
	File string `mapstructure:"-"`
}

// ConventionConfig names the marker, pooled base and reset method
type ConventionConfig struct {
	MarkerAnnotation string `mapstructure:"marker_annotation"`
	MarkerInterface  string `mapstructure:"marker_interface"`
	PooledBase       string `mapstructure:"pooled_base"`
	ResetMethod      string `mapstructure:"reset_method"`
}

// WatchConfig represents watch mode configuration
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Ignore   []string      `mapstructure:"ignore"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	conv := metadata.DefaultConvention()
	v.SetDefault("input", ".")
	v.SetDefault("output", "")
	v.SetDefault("jobs", 0)
	v.SetDefault("convention.marker_annotation", conv.MarkerAnnotation)
	v.SetDefault("convention.marker_interface", conv.MarkerInterface)
	v.SetDefault("convention.pooled_base", conv.PooledBase)
	v.SetDefault("convention.reset_method", conv.ResetMethod)
	v.SetDefault("watch.debounce", "200ms")
	v.SetDefault("watch.ignore", []string{})
	v.SetDefault("log.format", "console")
}

// Load loads the configuration from weaver.yml or weaver.yaml in the working
// directory, or from path when it is not empty. Environment variables with
// the WEAVER_ prefix override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("weaver")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.File = v.ConfigFileUsed()

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns the configuration used when no file exists
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("config: defaults do not unmarshal: %v", err))
	}
	return &config
}

// ToConvention converts the convention section for the build system
func (c *Config) ToConvention() metadata.Convention {
	return metadata.Convention{
		MarkerAnnotation: c.Convention.MarkerAnnotation,
		MarkerInterface:  c.Convention.MarkerInterface,
		PooledBase:       c.Convention.PooledBase,
		ResetMethod:      c.Convention.ResetMethod,
	}
}

// Write stores cfg as YAML at path
func Write(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("input", cfg.Input)
	if cfg.Output != "" {
		v.Set("output", cfg.Output)
	}
	if cfg.Jobs > 0 {
		v.Set("jobs", cfg.Jobs)
	}
	v.Set("convention.marker_annotation", cfg.Convention.MarkerAnnotation)
	if cfg.Convention.MarkerInterface != "" {
		v.Set("convention.marker_interface", cfg.Convention.MarkerInterface)
	}
	v.Set("convention.pooled_base", cfg.Convention.PooledBase)
	v.Set("convention.reset_method", cfg.Convention.ResetMethod)
	v.Set("watch.debounce", cfg.Watch.Debounce.String())
	v.Set("log.format", cfg.Log.Format)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// InProject checks if the current directory has a weaver config file
func InProject() bool {
	for _, name := range FileNames {
		if _, err := os.Stat(name); err == nil {
			return true
		}
	}
	return false
}

// GetProjectRoot tries to find the project root by looking for weaver.yml
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, name := range FileNames {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a weaver project (no weaver.yml found)")
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Input == "" {
		return fmt.Errorf("input must not be empty")
	}
	if cfg.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got: %d", cfg.Jobs)
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got: %s", cfg.Watch.Debounce)
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be 'console' or 'json', got: %s", cfg.Log.Format)
	}
	if err := cfg.ToConvention().Validate(); err != nil {
		return fmt.Errorf("convention: %w", err)
	}
	return nil
}
