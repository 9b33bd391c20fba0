package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/run-bigpig/stockdesk/internal/adk/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Inspect configured MCP servers",
}

var mcpTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Connect to every enabled MCP server and list its tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		mgr := mcp.NewManager()
		if err := mgr.LoadConfigs(cfg.MCPServers); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
		ids := mgr.ServerIDs()
		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No MCP servers enabled.")
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), discoverTimeout)
		defer cancel()
		failed := 0
		for _, id := range ids {
			status := mgr.TestConnection(ctx, id)
			if !status.Connected {
				failed++
				fmt.Fprintf(out, "✗ %s: %s\n", id, status.Error)
				continue
			}
			toolInfos, err := mgr.GetServerTools(ctx, id)
			if err != nil {
				fmt.Fprintf(out, "✓ %s: connected, listing tools failed: %v\n", id, err)
				continue
			}
			fmt.Fprintf(out, "✓ %s: %d tools\n", id, len(toolInfos))
			for _, t := range toolInfos {
				fmt.Fprintf(out, "    %s  %s\n", t.Name, t.Description)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d MCP servers unreachable", failed, len(ids))
		}
		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpTestCmd)
	rootCmd.AddCommand(mcpCmd)
}
