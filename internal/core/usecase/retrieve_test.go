package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/corpusqa/corpusqa/internal/core/domain"
)

type searchIndexFake struct {
	lexical  []domain.Fragment
	lexErr   error
	vector   []domain.Fragment
	vecErr   error
	lexCalls int
	vecCalls int
	lexLimit int
	vecLimit int
	filters  domain.Filters
}

func (f *searchIndexFake) LexicalSearch(_ context.Context, _ string, _ string, limit int, filters domain.Filters) ([]domain.Fragment, error) {
	f.lexCalls++
	f.lexLimit = limit
	f.filters = filters
	return f.lexical, f.lexErr
}

func (f *searchIndexFake) VectorSearch(_ context.Context, _ string, _ []float32, limit int, _ domain.Filters) ([]domain.Fragment, error) {
	f.vecCalls++
	f.vecLimit = limit
	return f.vector, f.vecErr
}

func (f *searchIndexFake) Stats(context.Context, string) (domain.IndexStats, error) {
	return domain.IndexStats{}, nil
}

func (f *searchIndexFake) Ping(context.Context) error { return nil }

type embedderFake struct {
	vector []float32
	err    error
	calls  int
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.vector == nil {
		return []float32{0.1, 0.2}, nil
	}
	return f.vector, nil
}

func newTestEngine(index *searchIndexFake, embedder *embedderFake) *RetrievalEngine {
	return NewRetrievalEngine(domain.CorpusArxiv, index, embedder, RetrievalOptions{}, testLogger())
}

func TestRetrieveHybridFusesBothLists(t *testing.T) {
	index := &searchIndexFake{
		lexical: []domain.Fragment{fragment("d1"), fragment("d2"), fragment("d3")},
		vector:  []domain.Fragment{fragment("d2"), fragment("d4")},
	}
	embedder := &embedderFake{}
	engine := newTestEngine(index, embedder)

	fragments, mode, err := engine.Retrieve(context.Background(), "attention mechanism", 5, domain.Filters{}, true)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if mode != domain.RetrievalModeHybrid {
		t.Fatalf("mode = %s, want hybrid", mode)
	}
	if fragments[0].DocumentID != "d2" {
		t.Fatalf("expected d2 first, got %s", fragments[0].DocumentID)
	}
	if index.lexLimit != 20 || index.vecLimit != 20 {
		t.Fatalf("expected overfetch 5*4=20, got lexical=%d vector=%d", index.lexLimit, index.vecLimit)
	}
	if embedder.calls != 1 {
		t.Fatalf("expected one embedding call, got %d", embedder.calls)
	}
}

func TestRetrieveEmbeddingFailureDegradesToLexical(t *testing.T) {
	index := &searchIndexFake{
		lexical: []domain.Fragment{fragment("d1"), fragment("d2")},
	}
	embedder := &embedderFake{err: errors.New("embedder down")}
	engine := newTestEngine(index, embedder)

	fragments, mode, err := engine.Retrieve(context.Background(), "q", 5, domain.Filters{}, true)
	if err != nil {
		t.Fatalf("embedding failure must not abort retrieval: %v", err)
	}
	if mode != domain.RetrievalModeLexical {
		t.Fatalf("mode = %s, want lexical", mode)
	}
	if len(fragments) != 2 || fragments[0].DocumentID != "d1" {
		t.Fatalf("expected lexical order preserved, got %v", fusedIDs(fragments))
	}
	if index.vecCalls != 0 {
		t.Fatalf("vector search must be skipped without an embedding, got %d calls", index.vecCalls)
	}
}

func TestRetrieveVectorFailureDegradesToLexical(t *testing.T) {
	index := &searchIndexFake{
		lexical: []domain.Fragment{fragment("d1")},
		vecErr:  errors.New("knn shard failure"),
	}
	engine := newTestEngine(index, &embedderFake{})

	fragments, mode, err := engine.Retrieve(context.Background(), "q", 5, domain.Filters{}, true)
	if err != nil {
		t.Fatalf("vector failure must not abort retrieval: %v", err)
	}
	if mode != domain.RetrievalModeLexical || len(fragments) != 1 {
		t.Fatalf("expected lexical-only result, mode=%s fragments=%d", mode, len(fragments))
	}
}

func TestRetrieveLexicalFailureServesSemanticResults(t *testing.T) {
	index := &searchIndexFake{
		lexErr: errors.New("bm25 query rejected"),
		vector: []domain.Fragment{fragment("d9")},
	}
	engine := newTestEngine(index, &embedderFake{})

	fragments, mode, err := engine.Retrieve(context.Background(), "q", 5, domain.Filters{}, true)
	if err != nil {
		t.Fatalf("semantic path alive, retrieval must survive: %v", err)
	}
	if mode != domain.RetrievalModeHybrid || len(fragments) != 1 || fragments[0].DocumentID != "d9" {
		t.Fatalf("expected semantic results, mode=%s fragments=%v", mode, fusedIDs(fragments))
	}
}

func TestRetrieveBothPathsFailing(t *testing.T) {
	index := &searchIndexFake{
		lexErr: errors.New("lexical down"),
		vecErr: errors.New("vector down"),
	}
	engine := newTestEngine(index, &embedderFake{})

	_, _, err := engine.Retrieve(context.Background(), "q", 5, domain.Filters{}, true)
	if !domain.IsKind(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestRetrieveLexicalOnlyModeSkipsEmbedding(t *testing.T) {
	index := &searchIndexFake{lexical: []domain.Fragment{fragment("d1")}}
	embedder := &embedderFake{}
	engine := newTestEngine(index, embedder)

	_, mode, err := engine.Retrieve(context.Background(), "q", 5, domain.Filters{}, false)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if mode != domain.RetrievalModeLexical {
		t.Fatalf("mode = %s, want lexical", mode)
	}
	if embedder.calls != 0 || index.vecCalls != 0 {
		t.Fatalf("semantic path must stay idle when hybrid is off")
	}
}

func TestRetrieveEmptyIndexIsNotAnError(t *testing.T) {
	engine := newTestEngine(&searchIndexFake{}, &embedderFake{})

	fragments, _, err := engine.Retrieve(context.Background(), "q", 5, domain.Filters{}, true)
	if err != nil {
		t.Fatalf("empty index must not error: %v", err)
	}
	if len(fragments) != 0 {
		t.Fatalf("expected no fragments, got %d", len(fragments))
	}
}

func TestRetrievePassesFiltersToIndex(t *testing.T) {
	index := &searchIndexFake{}
	engine := newTestEngine(index, &embedderFake{})

	filters := domain.Filters{Ticker: "AAPL", FilingTypes: []string{"10-K"}}
	if _, _, err := engine.Retrieve(context.Background(), "q", 5, filters, true); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if index.filters.Ticker != "AAPL" || len(index.filters.FilingTypes) != 1 {
		t.Fatalf("filters not forwarded to the index query: %+v", index.filters)
	}
}
