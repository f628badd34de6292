package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "EDUFLOW",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "EDUFLOW",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (EDUFLOW_*)
// 3. Project config (.eduflow/config.yaml in current directory)
// 4. User config (~/.config/eduflow/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".eduflow")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "eduflow"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("server.addr", ":8080")
	l.v.SetDefault("server.request_timeout", time.Minute)
	l.v.SetDefault("server.shutdown_timeout", 5*time.Second)

	l.v.SetDefault("coordinator.max_concurrent_workflows", 5)
	l.v.SetDefault("coordinator.scheduler_interval", time.Second)
	l.v.SetDefault("coordinator.optimization_interval", 300*time.Second)
	l.v.SetDefault("coordinator.cleanup_days", 7)
	l.v.SetDefault("coordinator.stats_report_path", "")

	l.v.SetDefault("retry.policy", "exponential")
	l.v.SetDefault("retry.base_delay", time.Second)
	l.v.SetDefault("retry.max_delay", 30*time.Second)
	l.v.SetDefault("retry.multiplier", 2.0)
	l.v.SetDefault("retry.jitter", 0.2)

	l.v.SetDefault("templates.dir", "")
	l.v.SetDefault("templates.watch", false)

	l.v.SetDefault("archive.enabled", true)
	l.v.SetDefault("archive.path", ".eduflow/archive.db")

	for _, name := range []string{"agent_system", "swarm_controller", "sparc_manager"} {
		l.v.SetDefault("executors."+name+".base_url", "")
		l.v.SetDefault("executors."+name+".request_timeout", 30*time.Second)
		l.v.SetDefault("executors."+name+".breaker_max_failures", 5)
		l.v.SetDefault("executors."+name+".breaker_cooloff", 30*time.Second)
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Coordinator.MaxConcurrentWorkflows < 1 {
		return fmt.Errorf("coordinator.max_concurrent_workflows must be at least 1")
	}
	if c.Coordinator.CleanupDays < 1 {
		return fmt.Errorf("coordinator.cleanup_days must be at least 1")
	}
	if c.Coordinator.OptimizationInterval <= 0 {
		return fmt.Errorf("coordinator.optimization_interval must be positive")
	}
	if c.Coordinator.SchedulerInterval <= 0 {
		return fmt.Errorf("coordinator.scheduler_interval must be positive")
	}
	switch c.Retry.Policy {
	case "exponential", "fixed":
	default:
		return fmt.Errorf("retry.policy must be exponential or fixed, got %q", c.Retry.Policy)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays cannot be negative")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("retry.jitter must be between 0 and 1")
	}
	return nil
}
