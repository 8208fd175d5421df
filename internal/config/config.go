// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvAPIURL is the environment variable that overrides the endpoint base address.
const EnvAPIURL = "ASSISTANT_API_URL"

// DefaultAPIURL is the endpoint base address used when nothing else is configured.
const DefaultAPIURL = "http://localhost:4001"

// Config holds the entire application configuration. It is built once and handed explicitly
// to the components that need it.
type Config struct {
	Assistant AssistantConfig `mapstructure:"assistant" yaml:"assistant"`
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// AssistantConfig describes how to reach the reasoning endpoint.
type AssistantConfig struct {
	APIURL        string        `mapstructure:"api_url" yaml:"api_url"`
	HealthTimeout time.Duration `mapstructure:"health_timeout" yaml:"health_timeout"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// MetricsConfig controls the Prometheus collectors.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Assistant endpoint --
	v.SetDefault("assistant.api_url", DefaultAPIURL)
	v.SetDefault("assistant.health_timeout", "5s")
	v.SetDefault("assistant.user_agent", "assistant-operate/1.0")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "assistant-operate")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Metrics --
	v.SetDefault("metrics.namespace", "assistant_adapter")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
// ASSISTANT_API_URL always wins over the file value for the endpoint address.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	if err := v.BindEnv("assistant.api_url", EnvAPIURL); err != nil {
		return nil, fmt.Errorf("error binding %s: %w", EnvAPIURL, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Assistant.Validate(); err != nil {
		return fmt.Errorf("assistant configuration invalid: %w", err)
	}
	if strings.TrimSpace(c.Metrics.Namespace) == "" {
		return fmt.Errorf("metrics.namespace must not be empty")
	}
	return nil
}

// Validate checks the endpoint settings.
func (a *AssistantConfig) Validate() error {
	if strings.TrimSpace(a.APIURL) == "" {
		return fmt.Errorf("api_url is required")
	}
	u, err := url.Parse(a.APIURL)
	if err != nil {
		return fmt.Errorf("api_url %q is not a valid URL: %w", a.APIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_url %q must use http or https", a.APIURL)
	}
	if u.Host == "" {
		return fmt.Errorf("api_url %q has no host", a.APIURL)
	}
	if a.HealthTimeout <= 0 {
		return fmt.Errorf("health_timeout must be a positive duration")
	}
	return nil
}
