package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/eduflow-ai/eduflow/internal/api"
	"github.com/eduflow-ai/eduflow/internal/config"
	"github.com/eduflow-ai/eduflow/internal/coordinator"
	"github.com/eduflow-ai/eduflow/internal/executors"
	"github.com/eduflow-ai/eduflow/internal/logging"
	"github.com/eduflow-ai/eduflow/internal/metrics"
	"github.com/eduflow-ai/eduflow/internal/store"
	"github.com/eduflow-ai/eduflow/internal/templates"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator and its HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cfg)
	},
}

func runServe(cfg *config.Config) error {
	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	registry, err := buildTemplateRegistry(cfg, logger)
	if err != nil {
		return err
	}

	execRegistry := executors.BuildRegistry(cfg.Executors, logger)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	promReg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var archive *store.SQLiteArchive
	if cfg.Archive.Enabled && cfg.Archive.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Archive.Path), 0o755); err != nil {
			return fmt.Errorf("creating archive directory: %w", err)
		}
		archive, err = store.NewSQLiteArchive(cfg.Archive.Path)
		if err != nil {
			return err
		}
		defer archive.Close()
	}

	deps := coordinator.Dependencies{
		Templates: registry,
		Executors: execRegistry,
		Store:     store.NewMemoryStore(),
		Retry:     retryFromConfig(cfg.Retry),
		Metrics:   metrics.New(promReg),
		Logger:    logger,
	}
	if archive != nil {
		deps.Archive = archive
	}

	coord, err := coordinator.New(coordinator.Config{
		MaxConcurrentWorkflows: cfg.Coordinator.MaxConcurrentWorkflows,
		SchedulerInterval:      cfg.Coordinator.SchedulerInterval,
		OptimizationInterval:   cfg.Coordinator.OptimizationInterval,
		Retention:              time.Duration(cfg.Coordinator.CleanupDays) * 24 * time.Hour,
		StatsReportPath:        cfg.Coordinator.StatsReportPath,
	}, deps)
	if err != nil {
		return err
	}

	server := api.NewServer(cfg.Server, coord, promReg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coord.Run(gctx) })
	g.Go(func() error { return coord.RunOptimizer(gctx) })
	g.Go(func() error { return server.ListenAndServe(gctx) })

	if cfg.Templates.Watch && cfg.Templates.Dir != "" {
		watcher, err := templates.NewWatcher(registry, cfg.Templates.Dir, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return watcher.Run(gctx) })
	}

	err = g.Wait()
	coord.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// buildTemplateRegistry registers the built-in catalog plus any templates
// found in the configured directory.
func buildTemplateRegistry(cfg *config.Config, logger *logging.Logger) (*templates.Registry, error) {
	registry := templates.NewRegistry()
	if err := templates.RegisterBuiltins(registry); err != nil {
		return nil, err
	}
	if cfg.Templates.Dir != "" {
		loaded, err := templates.LoadDir(registry, cfg.Templates.Dir)
		if err != nil {
			return nil, err
		}
		logger.Info("templates loaded from directory",
			"dir", cfg.Templates.Dir, "count", loaded)
	}
	return registry, nil
}

func retryFromConfig(cfg config.RetryConfig) *coordinator.RetryPolicy {
	if cfg.Policy == "fixed" {
		return coordinator.FixedRetryPolicy(cfg.BaseDelay)
	}
	return &coordinator.RetryPolicy{
		BaseDelay:    cfg.BaseDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
		JitterFactor: cfg.Jitter,
	}
}
