// Package cli wires the eduflow command tree.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eduflow-ai/eduflow/internal/config"
)

var (
	cfgFile string
	rootV   = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "eduflow",
	Short: "Workflow coordinator for educational content generation",
	Long: `eduflow orchestrates multi-step content-generation workflows:
templates are instantiated into dependency-ordered step graphs and
executed against the platform's LLM-backed executor services with
priority scheduling, per-step timeout and retry, and housekeeping.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "auto", "log format (auto, text, json)")

	_ = rootV.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = rootV.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads configuration honoring the shared flag bindings.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(rootV)
	if cfgFile != "" {
		loader = loader.WithConfigFile(cfgFile)
	}
	return loader.Load()
}
