package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/causalmem/cmem/internal/store"
)

func TestKeywordSearch_ANDSemantics(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	addNode(t, s, store.AddNodeRequest{ID: "login", Text: "the user logged in at 3pm"})
	addNode(t, s, store.AddNodeRequest{ID: "crash", Text: "the server crashed"})

	results, err := e.KeywordSearch(ctx, "user logged", 10)
	if err != nil {
		t.Fatalf("KeywordSearch failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "login" {
		t.Fatalf("expected exactly the login node, got %+v", results)
	}
}

func TestKeywordSearch_CaseInsensitive(t *testing.T) {
	e, s := newTestEngine(t)

	addNode(t, s, store.AddNodeRequest{ID: "n", Text: "Deploy FAILED on staging"})

	results, err := e.KeywordSearch(context.Background(), "deploy failed", 10)
	if err != nil {
		t.Fatalf("KeywordSearch failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected case-insensitive match, got %+v", results)
	}
}

func TestKeywordSearch_DensityRanking(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	// Same term count, different word counts: denser node ranks first.
	addNode(t, s, store.AddNodeRequest{ID: "sparse", Text: "the deploy was a deploy of the new release candidate"})
	addNode(t, s, store.AddNodeRequest{ID: "dense", Text: "deploy deploy"})

	results, err := e.KeywordSearch(ctx, "deploy", 10)
	if err != nil {
		t.Fatalf("KeywordSearch failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	if results[0].ID != "dense" {
		t.Errorf("expected denser node first, got %s", results[0].ID)
	}
	if results[0].Score != 1.0 {
		t.Errorf("expected density score 1.0 for dense node, got %f", results[0].Score)
	}
}

func TestKeywordSearch_EmptyQuery(t *testing.T) {
	e, _ := newTestEngine(t)

	for _, q := range []string{"", "   "} {
		_, err := e.KeywordSearch(context.Background(), q, 10)
		if !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("KeywordSearch(%q): expected ErrEmptyQuery, got %v", q, err)
		}
	}
}

func TestKeywordSearch_FindsEmbeddinglessNodes(t *testing.T) {
	e, s := newTestEngine(t)

	// No embedding; similarity search cannot see this node but keyword
	// search must.
	addNode(t, s, store.AddNodeRequest{ID: "plain", Text: "config cache invalidated"})

	results, err := e.KeywordSearch(context.Background(), "cache", 10)
	if err != nil {
		t.Fatalf("KeywordSearch failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "plain" {
		t.Fatalf("expected embedding-less node matched, got %+v", results)
	}
}

func TestKeywordSearch_LimitAndDeterminism(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	// Identical density ties keep store iteration order.
	addNode(t, s, store.AddNodeRequest{ID: "k1", Text: "alpha beta"})
	addNode(t, s, store.AddNodeRequest{ID: "k2", Text: "alpha gamma"})
	addNode(t, s, store.AddNodeRequest{ID: "k3", Text: "alpha delta"})

	for i := 0; i < 3; i++ {
		results, err := e.KeywordSearch(ctx, "alpha", 2)
		if err != nil {
			t.Fatalf("KeywordSearch failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected limit of 2 results, got %d", len(results))
		}
		if results[0].ID != "k1" || results[1].ID != "k2" {
			t.Fatalf("call %d: unstable tie order: %s, %s", i, results[0].ID, results[1].ID)
		}
	}
}
