package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/causalmem/cmem/internal/config"
	"github.com/causalmem/cmem/internal/retrieval"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Multi-hop search by embedding vector",
		Long: `Search memories by embedding similarity, escalating to graph traversal.

Cosine similarity ranks every embedded memory against the query vector.
When the confidence of the top hits falls below the threshold, the best
hits seed a bounded graph walk and causally or associatively connected
memories are appended to the results.

Unset parameters fall back to .cmem/config.yaml, then to built-in defaults.

Example:
  cmem search --embedding 0.12,0.91,0.33 --topk 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(cmd)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			embedding, _ := cmd.Flags().GetFloat32Slice("embedding")
			topK, _ := cmd.Flags().GetInt("topk")
			maxDepth, _ := cmd.Flags().GetInt("max-depth")

			cfg, err := config.Load(root)
			if err != nil {
				return err
			}
			if topK == 0 {
				topK = cfg.Search.TopK
			}
			// Zero is a meaningful threshold (it disables escalation),
			// so only an unset flag falls back to config.
			threshold := cfg.Search.SimilarityThreshold
			if cmd.Flags().Changed("threshold") {
				threshold, _ = cmd.Flags().GetFloat64("threshold")
			}
			if maxDepth == 0 {
				maxDepth = cfg.Search.MaxDepth
			}

			s, err := openStore(root)
			if err != nil {
				return err
			}
			defer s.Close()

			engine := retrieval.NewEngine(s, cfg.Retrieval)
			result, err := engine.MultiHopSearch(context.Background(), embedding, topK, threshold, maxDepth)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(result)
			}

			fmt.Printf("Confidence: %.4f (%d similarity, %d traversal)\n\n",
				result.Confidence, result.SimilarityCount, result.TraversalCount)
			printResults(result.Results)
			return nil
		},
	}

	cmd.Flags().Float32Slice("embedding", nil, "Query embedding as comma-separated floats (required)")
	cmd.Flags().Int("topk", 0, "Number of similarity results to return")
	cmd.Flags().Float64("threshold", 0, "Confidence below which traversal kicks in")
	cmd.Flags().Int("max-depth", 0, "Maximum traversal depth from seed memories")
	cmd.MarkFlagRequired("embedding")

	return cmd
}

func newKeywordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyword <query>",
		Short: "Search memories by keyword match",
		Long: `Search memory text for keywords when no embedding is available.

Every whitespace-separated term must appear in a memory (case-insensitive)
for it to match; results are ranked by term density.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(cmd)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, err := config.Load(root)
			if err != nil {
				return err
			}
			if limit == 0 {
				limit = cfg.Search.KeywordLimit
			}

			s, err := openStore(root)
			if err != nil {
				return err
			}
			defer s.Close()

			engine := retrieval.NewEngine(s, cfg.Retrieval)
			results, err := engine.KeywordSearch(context.Background(), args[0], limit)
			if err != nil {
				return fmt.Errorf("keyword search failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"results": results,
					"count":   len(results),
				})
			}

			printResults(results)
			return nil
		},
	}

	cmd.Flags().Int("limit", 0, "Maximum number of results")

	return cmd
}

func printResults(results []retrieval.SearchResult) {
	if len(results) == 0 {
		fmt.Println("No matching memories.")
		return
	}
	for i, r := range results {
		fmt.Printf("%d. [%.4f] %s\n", i+1, r.Score, r.ID)
		fmt.Printf("   %s\n", r.Text)
		if r.EdgeType != "" {
			fmt.Printf("   Via: %s (depth %d)\n", r.EdgeType, r.Depth)
		}
		if r.Source != "" {
			fmt.Printf("   Source: %s\n", r.Source)
		}
	}
}
