package retrieval

import (
	"context"
	"math"
)

// MultiHopSearch runs similarity search, computes a confidence score
// for the result set, and escalates to graph traversal seeded by the
// top similarity hits when confidence falls below threshold. Traversal
// hits rank below similarity hits with score 0.0, in discovery order.
// The combined list is truncated to 2*topK.
func (e *Engine) MultiHopSearch(ctx context.Context, query []float32, topK int, threshold float64, maxDepth int) (*MultiHopResult, error) {
	simResults, err := e.SimilaritySearch(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	confidence := e.confidence(simResults, topK)
	combined := simResults

	if confidence < threshold && len(simResults) > 0 {
		seedCount := e.cfg.TraversalSeeds
		if seedCount > len(simResults) {
			seedCount = len(simResults)
		}
		seeds := make([]string, seedCount)
		for i := 0; i < seedCount; i++ {
			seeds[i] = simResults[i].ID
		}

		traversed, err := e.Traverse(ctx, seeds, maxDepth, nil)
		if err != nil {
			return nil, err
		}

		seen := make(map[string]bool, len(combined))
		for _, r := range combined {
			seen[r.ID] = true
		}
		for _, t := range traversed {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			combined = append(combined, SearchResult{
				ID:        t.ID,
				Text:      t.Text,
				Score:     0.0,
				Timestamp: t.Timestamp,
				Source:    t.Source,
				EdgeType:  t.EdgeType,
				Depth:     t.Depth,
			})
		}
	}

	if len(combined) > 2*topK {
		combined = combined[:2*topK]
	}

	return &MultiHopResult{
		Results:         combined,
		Confidence:      confidence,
		SimilarityCount: len(simResults),
		TraversalCount:  len(combined) - len(simResults),
	}, nil
}

// confidence estimates how well similarity search alone answered the
// query: a weighted sum of the top score, the mean score, and the ratio
// of returned results to requested topK, clamped to [0,1] and rounded
// to 4 decimal places. An empty result set scores exactly 0.0.
func (e *Engine) confidence(results []SearchResult, expectedK int) float64 {
	if len(results) == 0 {
		return 0.0
	}
	if expectedK < 1 {
		expectedK = 1
	}

	topScore := results[0].Score
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	meanScore := sum / float64(len(results))
	countRatio := math.Min(float64(len(results))/float64(expectedK), 1.0)

	c := e.cfg.ConfidenceTopWeight*topScore +
		e.cfg.ConfidenceMeanWeight*meanScore +
		e.cfg.ConfidenceCountWeight*countRatio
	c = math.Min(math.Max(c, 0.0), 1.0)
	return math.Round(c*10000) / 10000
}
