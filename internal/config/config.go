// Package config loads the ambient settings for the Directory and Node
// binaries: logging, shutdown behavior, and the capacities and storage
// paths the spec's CLI surface never mentions. The binaries' required
// positional arguments (ip, port, ...) are parsed directly in main.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DirectoryConfig holds ambient settings for the arbor-directory binary.
type DirectoryConfig struct {
	Logging LoggingConfig `mapstructure:"logging" validate:"required"`

	// ShutdownTimeout is loaded and validated but not read by
	// arbor-directory: on SIGINT/SIGTERM it stops the listener and exits
	// without waiting for in-flight sessions.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// CacheCapacity is the location cache's fixed capacity.
	CacheCapacity int `mapstructure:"cache_capacity" validate:"required,gt=0"`

	// RegistryCapacity is the Node registry's fixed slot count.
	RegistryCapacity int `mapstructure:"registry_capacity" validate:"required,gt=0"`

	// EnableExec gates the EXEC command. Off by default: the source's
	// documented behavior runs the file's bytes through the host shell
	// unsanitised.
	EnableExec bool `mapstructure:"enable_exec"`

	Metrics MetricsConfig `mapstructure:"metrics"`
}

// NodeConfig holds ambient settings for the arbor-node binary.
type NodeConfig struct {
	Logging LoggingConfig `mapstructure:"logging" validate:"required"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// BaseDir is the Node's storage root. arbor-node defaults it to
	// ss_<port> relative to the working directory.
	BaseDir string `mapstructure:"base_dir" validate:"required"`

	// SweepSwapsOnStart deletes orphaned *_<digits>_<digits>.swap files
	// under files/ before the public listener opens.
	SweepSwapsOnStart bool `mapstructure:"sweep_swaps_on_start"`

	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior, mirroring internal/logger.Config.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" validate:"required"`
}

// MetricsConfig configures the optional Prometheus HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

func defaultLogging() LoggingConfig {
	return LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"}
}

func defaultMetrics() MetricsConfig {
	return MetricsConfig{Enabled: false, Addr: ":9101"}
}

// LoadDirectoryConfig reads ARBOR_* environment variables (falling back to
// defaults) into a validated DirectoryConfig.
func LoadDirectoryConfig() (*DirectoryConfig, error) {
	v := newViper()

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("cache_capacity", 16)
	v.SetDefault("registry_capacity", 64)
	v.SetDefault("enable_exec", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9101")

	var cfg DirectoryConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal directory config: %w", err)
	}
	if err := validateStruct(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadNodeConfig reads ARBOR_* environment variables (falling back to
// defaults) into a validated NodeConfig.
func LoadNodeConfig(defaultBaseDir string) (*NodeConfig, error) {
	v := newViper()

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("base_dir", defaultBaseDir)
	v.SetDefault("sweep_swaps_on_start", true)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9102")

	var cfg NodeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal node config: %w", err)
	}
	if err := validateStruct(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ARBOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func validateStruct(cfg any) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	return nil
}
