package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete luxd configuration.
type Config struct {
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	Router  RouterConfig  `json:"router" mapstructure:"router"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// ServerConfig contains listener and connection settings
type ServerConfig struct {
	Addr            string        `json:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration `json:"readTimeout" mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout" mapstructure:"writeTimeout"`
	IdleTimeout     time.Duration `json:"idleTimeout" mapstructure:"idleTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" mapstructure:"shutdownTimeout"`
}

// RouterConfig contains path normalization settings
type RouterConfig struct {
	CaseSensitive bool `json:"caseSensitive" mapstructure:"caseSensitive"`
	StrictSlash   bool `json:"strictSlash" mapstructure:"strictSlash"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// MetricsConfig contains the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
	Path    string `json:"path" mapstructure:"path"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "0.0.0.0:4221",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9090",
			Path:    "/metrics",
		},
	}
}

// EnvPrefix prefixes every environment override, e.g. LUX_SERVER_ADDR.
const EnvPrefix = "LUX"

// LoadConfig reads the file at path (any format viper knows by its
// extension) on top of the defaults, then applies LUX_* environment
// variables. An empty path skips the file; a missing file is an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.readTimeout", d.Server.ReadTimeout)
	v.SetDefault("server.writeTimeout", d.Server.WriteTimeout)
	v.SetDefault("server.idleTimeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdownTimeout", d.Server.ShutdownTimeout)
	v.SetDefault("router.caseSensitive", d.Router.CaseSensitive)
	v.SetDefault("router.strictSlash", d.Router.StrictSlash)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return &ConfigError{Field: "server.addr", Message: "must not be empty"}
	}
	for field, d := range map[string]time.Duration{
		"server.readTimeout":     c.Server.ReadTimeout,
		"server.writeTimeout":    c.Server.WriteTimeout,
		"server.idleTimeout":     c.Server.IdleTimeout,
		"server.shutdownTimeout": c.Server.ShutdownTimeout,
	} {
		if d < 0 {
			return &ConfigError{Field: field, Message: "must not be negative"}
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ConfigError{Field: "logging.level", Message: "unknown level " + c.Logging.Level}
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be text or json"}
	}
	if c.Metrics.Enabled {
		if c.Metrics.Addr == "" {
			return &ConfigError{Field: "metrics.addr", Message: "must not be empty when metrics are enabled"}
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return &ConfigError{Field: "metrics.path", Message: "must start with /"}
		}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
