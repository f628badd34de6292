package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eduflow-ai/eduflow/internal/logging"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the registered workflow templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		registry, err := buildTemplateRegistry(cfg, logging.NewNop())
		if err != nil {
			return err
		}

		for _, tmpl := range registry.List() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", tmpl.Name, tmpl.Description)
			for _, bp := range tmpl.Steps {
				line := fmt.Sprintf("  %-28s executor=%s", bp.Name, bp.Executor)
				if len(bp.DependsOn) > 0 {
					line += " after=" + strings.Join(bp.DependsOn, ",")
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
		}
		return nil
	},
}
