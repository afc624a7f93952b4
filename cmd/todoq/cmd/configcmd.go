package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newConfigCmd creates the 'config' subcommand
func newConfigCmd(env *environment) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath(env)
			if env.jsonOutput() {
				return writeJSON(env.stdout, map[string]string{"path": path, "result": ResultInfoOnly})
			}
			_, _ = fmt.Fprintln(env.stdout, path)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after flags and environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(env)
			if err != nil {
				return err
			}
			if env.jsonOutput() {
				return writeJSON(env.stdout, map[string]interface{}{
					"endpoint":            cfg.Endpoint.URL,
					"timeout":             cfg.GetEndpointTimeout().String(),
					"speculative_updates": cfg.IsSpeculativeUpdatesEnabled(),
					"newest_first":        cfg.IsNewestFirst(),
					"analytics":           cfg.IsAnalyticsEnabled(),
					"result":              ResultInfoOnly,
				})
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(env.stdout, string(data))
			return nil
		},
	})

	return configCmd
}
