package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/causalmem/cmem/internal/store"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Store a memory, optionally linked to earlier memories",
		Long: `Store a timestamped text memory and declare its relations in one call.

Causal links point from cause to effect: --caused-by lists existing
memories that led to this one, --causes lists existing memories this one
led to. Associations are symmetric and create an edge in each direction.

Examples:
  cmem add "deploy failed" --caused-by a1b2c3d4e5f6
  cmem add "rolled back release" --causes a1b2c3d4e5f6 --source ops
  cmem add "disk alert fired" --embedding 0.12,0.91,0.33`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(cmd)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			id, _ := cmd.Flags().GetString("id")
			source, _ := cmd.Flags().GetString("source")
			timestamp, _ := cmd.Flags().GetFloat64("timestamp")
			embedding, _ := cmd.Flags().GetFloat32Slice("embedding")
			causedBy, _ := cmd.Flags().GetStringSlice("caused-by")
			causes, _ := cmd.Flags().GetStringSlice("causes")
			assoc, _ := cmd.Flags().GetStringSlice("assoc")

			s, err := openStore(root)
			if err != nil {
				return err
			}
			defer s.Close()

			if timestamp == 0 {
				timestamp = float64(time.Now().UnixNano()) / 1e9
			}

			nodeID, err := s.AddNode(context.Background(), store.AddNodeRequest{
				ID:           id,
				Text:         args[0],
				Embedding:    embedding,
				Source:       source,
				Timestamp:    timestamp,
				CausedBy:     causedBy,
				Causes:       causes,
				Associations: assoc,
			})
			if err != nil {
				return fmt.Errorf("failed to add memory: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"status": "added",
					"id":     nodeID,
				})
			}

			fmt.Printf("Added memory %s\n", nodeID)
			if n := len(causedBy) + len(causes) + 2*len(assoc); n > 0 {
				fmt.Printf("  Edges created: %d\n", n)
			}
			return nil
		},
	}

	cmd.Flags().String("id", "", "Explicit memory ID (replaces an existing memory)")
	cmd.Flags().String("source", "", "Origin label for this memory")
	cmd.Flags().Float64("timestamp", 0, "Event time as Unix seconds (defaults to now)")
	cmd.Flags().Float32Slice("embedding", nil, "Embedding vector as comma-separated floats")
	cmd.Flags().StringSlice("caused-by", nil, "IDs of memories that caused this one")
	cmd.Flags().StringSlice("causes", nil, "IDs of memories this one caused")
	cmd.Flags().StringSlice("assoc", nil, "IDs of memories associated with this one")

	return cmd
}
