// internal/config/config.go
package config

import (
	"fmt"
	"regexp"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the dispatcher.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	// Workers is the worker pool size; the only concurrency bound.
	Workers int `mapstructure:"workers" validate:"gte=1"`
	// PythonPath is the interpreter executable. When empty, it is resolved
	// from Prefix and PythonVersion instead.
	PythonPath string `mapstructure:"python_path" validate:"required_without=Prefix"`
	// Prefix is the environment prefix the source paths belong to.
	Prefix        string `mapstructure:"prefix"`
	PythonVersion string `mapstructure:"python_version" validate:"required_with=Prefix,omitempty,pyver"`
	// JobTimeout bounds a single compilation; zero disables the deadline.
	JobTimeout time.Duration `mapstructure:"job_timeout" validate:"gte=0"`
	// MetricsListenAddr exposes /metrics when non-empty.
	MetricsListenAddr string `mapstructure:"metrics_listen_addr"`
	TraceEnabled      bool   `mapstructure:"trace_enabled"`
}

var pyverPattern = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("workers", runtime.NumCPU())
	viper.SetDefault("job_timeout", "2m")
	viper.SetDefault("trace_enabled", false)
	// Register the remaining keys so environment overrides are picked up
	// even without a config file.
	viper.SetDefault("python_path", "")
	viper.SetDefault("prefix", "")
	viper.SetDefault("python_version", "")
	viper.SetDefault("metrics_listen_addr", "")

	// Set config file details
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	// Read environment variables (PYCDISPATCH_WORKERS, ...)
	viper.SetEnvPrefix("pycdispatch")
	viper.AutomaticEnv()

	// Read the config file; missing file is fine, defaults and env apply.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks a Config against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New()

	_ = validate.RegisterValidation("pyver", func(fl validator.FieldLevel) bool {
		return pyverPattern.MatchString(fl.Field().String())
	})

	return validate.Struct(cfg)
}
