package executors

import (
	"github.com/eduflow-ai/eduflow/internal/config"
	"github.com/eduflow-ai/eduflow/internal/core"
	"github.com/eduflow-ai/eduflow/internal/logging"
	"github.com/eduflow-ai/eduflow/internal/templates"
)

// BuildRegistry creates the executor registry with the three platform
// executors wired to their configured endpoints.
func BuildRegistry(cfg config.ExecutorsConfig, logger *logging.Logger) *core.ExecutorRegistry {
	registry := core.NewExecutorRegistry()
	registry.Register(fromConfig(templates.ExecutorAgentSystem, cfg.AgentSystem, logger))
	registry.Register(fromConfig(templates.ExecutorSwarmController, cfg.SwarmController, logger))
	registry.Register(fromConfig(templates.ExecutorSparcManager, cfg.SparcManager, logger))
	return registry
}

func fromConfig(name string, cfg config.ExecutorConfig, logger *logging.Logger) *HTTPExecutor {
	return New(Options{
		Name:               name,
		BaseURL:            cfg.BaseURL,
		RequestTimeout:     cfg.RequestTimeout,
		BreakerMaxFailures: cfg.BreakerMaxFail,
		BreakerCooloff:     cfg.BreakerCooloff,
	}, logger)
}
