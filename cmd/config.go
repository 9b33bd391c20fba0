package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/stockdesk/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the stockdesk configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Long:  `Write a commented default config file, by default to ./.stockdesk/config.yaml. An existing file is never overwritten.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.LocalConfigFile
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "data_dir:       %s\n", cfg.DataDir)
		fmt.Fprintf(out, "log_level:      %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "workers:        %d\n", cfg.Workers)
		fmt.Fprintf(out, "poll_interval:  %s\n", cfg.PollInterval)
		fmt.Fprintf(out, "history_days:   %d\n", cfg.HistoryDays)
		fmt.Fprintf(out, "technical_days: %d\n", cfg.TechnicalDays)
		fmt.Fprintf(out, "ai.provider:    %s\n", cfg.AI.Provider)
		fmt.Fprintf(out, "ai.model:       %s\n", cfg.AI.ModelName)
		fmt.Fprintf(out, "ai.api_key:     %s\n", mask(cfg.AI.APIKey))
		fmt.Fprintf(out, "marketstack:    %s (key %s)\n", cfg.MarketStack.BaseURL, mask(cfg.MarketStack.APIKey))
		fmt.Fprintf(out, "tavily key:     %s\n", mask(cfg.Search.TavilyAPIKey))
		fmt.Fprintf(out, "cache.ttl:      %s\n", cfg.Cache.TTL)
		fmt.Fprintf(out, "mcp_servers:    %d\n", len(cfg.MCPServers))
		return nil
	},
}

// mask 只保留末四位
func mask(secret string) string {
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 4:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
