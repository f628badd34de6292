package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Server      ServerConfig      `mapstructure:"server"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Retry       RetryConfig       `mapstructure:"retry"`
	Templates   TemplatesConfig   `mapstructure:"templates"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Executors   ExecutorsConfig   `mapstructure:"executors"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CoordinatorConfig configures workflow scheduling and housekeeping.
type CoordinatorConfig struct {
	MaxConcurrentWorkflows int           `mapstructure:"max_concurrent_workflows"`
	SchedulerInterval      time.Duration `mapstructure:"scheduler_interval"`
	OptimizationInterval   time.Duration `mapstructure:"optimization_interval"`
	CleanupDays            int           `mapstructure:"cleanup_days"`
	StatsReportPath        string        `mapstructure:"stats_report_path"`
}

// RetryConfig configures the backoff policy between step attempts.
type RetryConfig struct {
	Policy     string        `mapstructure:"policy"` // exponential, fixed
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	Multiplier float64       `mapstructure:"multiplier"`
	Jitter     float64       `mapstructure:"jitter"`
}

// TemplatesConfig configures the template catalog.
type TemplatesConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}

// ArchiveConfig configures the terminal-workflow archive.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ExecutorsConfig configures the executor transport clients.
type ExecutorsConfig struct {
	AgentSystem     ExecutorConfig `mapstructure:"agent_system"`
	SwarmController ExecutorConfig `mapstructure:"swarm_controller"`
	SparcManager    ExecutorConfig `mapstructure:"sparc_manager"`
}

// ExecutorConfig configures a single executor client.
type ExecutorConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	BreakerMaxFail uint32        `mapstructure:"breaker_max_failures"`
	BreakerCooloff time.Duration `mapstructure:"breaker_cooloff"`
}
