package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/causalmem/cmem/internal/config"
	"github.com/causalmem/cmem/internal/edges"
)

func newDeriveEdgesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive-edges",
		Short: "Derive similarity edges between embedded memories",
		Long: `Compare all embedded memories pairwise and link similar ones.

Pairs whose cosine similarity falls in [threshold, upper-bound) get a
symmetric pair of similarity edges weighted by the score. The upper bound
excludes near-duplicates. Pairs already linked are skipped, so re-running
is safe.

Examples:
  cmem derive-edges                 # Derive with configured thresholds
  cmem derive-edges --dry-run       # Preview without creating edges
  cmem derive-edges --threshold 0.7 # Only link strongly similar pairs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(cmd)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			cfg, err := config.Load(root)
			if err != nil {
				return err
			}
			deriveCfg := cfg.Derive
			deriveCfg.DryRun = dryRun
			if cmd.Flags().Changed("threshold") {
				deriveCfg.Threshold, _ = cmd.Flags().GetFloat64("threshold")
			}
			if cmd.Flags().Changed("upper-bound") {
				deriveCfg.UpperBound, _ = cmd.Flags().GetFloat64("upper-bound")
			}

			s, err := openStore(root)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := edges.Derive(context.Background(), s, deriveCfg)
			if err != nil {
				return fmt.Errorf("failed to derive edges: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]interface{}{
					"dry_run": dryRun,
					"result":  result,
				})
			}

			printDeriveResult(result, dryRun)
			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Show proposed edges without creating them")
	cmd.Flags().Float64("threshold", 0, "Minimum similarity score to link a pair")
	cmd.Flags().Float64("upper-bound", 0, "Score at or above which a pair is treated as a duplicate")

	return cmd
}

func printDeriveResult(r *edges.DeriveResult, dryRun bool) {
	if dryRun {
		fmt.Println("=== derive-edges (dry run) ===")
	} else {
		fmt.Println("=== derive-edges ===")
	}
	fmt.Printf("Embedded memories: %d\n", r.Nodes)
	fmt.Printf("Pairs compared: %d\n", r.PairsCompared)

	fmt.Println("\nScore distribution:")
	bucketLabels := []string{
		"[0.0-0.1)", "[0.1-0.2)", "[0.2-0.3)", "[0.3-0.4)", "[0.4-0.5)",
		"[0.5-0.6)", "[0.6-0.7)", "[0.7-0.8)", "[0.8-0.9)", "[0.9-1.0]",
	}
	for i, count := range r.Histogram {
		if count > 0 {
			bar := ""
			for range count {
				if len(bar) < 50 {
					bar += "#"
				}
			}
			fmt.Printf("  %s %s (%d)\n", bucketLabels[i], bar, count)
		}
	}

	fmt.Printf("\nProposed edges: %d\n", len(r.ProposedEdges))
	fmt.Printf("Skipped (already linked): %d\n", r.SkippedExist)
	if !dryRun {
		fmt.Printf("Created edges: %d\n", r.CreatedEdges)
	}
}
