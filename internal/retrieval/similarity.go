package retrieval

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/causalmem/cmem/internal/vecmath"
)

// scanShardSize is the minimum number of rows per scoring goroutine.
// Below one shard the scan runs serially.
const scanShardSize = 1024

// SimilaritySearch scores every embedding-bearing node against the
// query vector and returns the topK, sorted by cosine similarity
// descending. Ties keep store iteration order. This is the exact
// full-scan reference algorithm, O(N*D) per query; scoring is sharded
// across goroutines without changing the observable ordering.
func (e *Engine) SimilaritySearch(ctx context.Context, query []float32, topK int) ([]SearchResult, error) {
	if len(query) == 0 {
		return nil, ErrEmptyEmbedding
	}
	if topK <= 0 {
		return nil, nil
	}

	rows, err := e.store.EmbeddedNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("similarity scan: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	scores := make([]float64, len(rows))
	if len(rows) < 2*scanShardSize {
		for i := range rows {
			scores[i] = vecmath.CosineSimilarity(query, rows[i].Embedding)
		}
	} else {
		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(runtime.NumCPU())
		for start := 0; start < len(rows); start += scanShardSize {
			end := start + scanShardSize
			if end > len(rows) {
				end = len(rows)
			}
			g.Go(func() error {
				for i := start; i < end; i++ {
					scores[i] = vecmath.CosineSimilarity(query, rows[i].Embedding)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	results := make([]SearchResult, len(rows))
	for i, r := range rows {
		results[i] = SearchResult{
			ID:        r.ID,
			Text:      r.Text,
			Score:     scores[i],
			Timestamp: r.Timestamp,
			Source:    r.Source,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}
