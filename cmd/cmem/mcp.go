package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/causalmem/cmem/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run cmem as an MCP (Model Context Protocol) server",
		Long: `Start an MCP server that exposes the memory graph over stdio.

The MCP server lets AI tools (Continue.dev, Cursor, Cline, Windsurf,
GitHub Copilot) store and query memories directly:

  • memory_add     - Store a memory with relations and embedding
  • memory_search  - Multi-hop search by embedding vector
  • memory_keyword - Keyword search over memory text
  • memory_stats   - Node and edge counts

The server communicates via JSON-RPC 2.0 over stdin/stdout, following the
Model Context Protocol specification.

Example usage in Continue.dev config.json:

  {
    "mcpServers": {
      "cmem": {
        "command": "cmem",
        "args": ["mcp-server"],
        "cwd": "${workspaceFolder}"
      }
    }
  }
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(cmd)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "cmem",
				Version: version,
				Root:    root,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			// Blocks until the client disconnects.
			if err := server.Run(context.Background()); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}

			return nil
		},
	}

	return cmd
}
