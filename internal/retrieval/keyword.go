package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// KeywordSearch matches nodes whose lower-cased text contains every
// query term as a substring (AND semantics). Score is the sum of
// per-term occurrence counts divided by the node's word count, sorted
// descending. It scans all nodes, including embedding-less ones, which
// makes it the only retrieval path for nodes without vectors.
func (e *Engine) KeywordSearch(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, ErrEmptyQuery
	}

	nodes, err := e.store.AllNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("keyword scan: %w", err)
	}

	var results []SearchResult
	for _, n := range nodes {
		textLower := strings.ToLower(n.Text)
		matched := true
		occurrences := 0
		for _, term := range terms {
			count := strings.Count(textLower, term)
			if count == 0 {
				matched = false
				break
			}
			occurrences += count
		}
		if !matched {
			continue
		}

		words := len(strings.Fields(textLower))
		if words < 1 {
			words = 1
		}
		results = append(results, SearchResult{
			ID:        n.ID,
			Text:      n.Text,
			Score:     float64(occurrences) / float64(words),
			Timestamp: n.Timestamp,
			Source:    n.Source,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
