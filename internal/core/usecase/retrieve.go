package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/corpusqa/corpusqa/internal/core/domain"
	"github.com/corpusqa/corpusqa/internal/core/ports"
)

const (
	minOverfetch     = 2
	defaultOverfetch = 4
)

// RetrievalOptions tune one corpus's retrieval behavior.
type RetrievalOptions struct {
	Overfetch int
	RRFK      int
}

// RetrievalEngine serves one corpus: a lexical query and an
// embed-then-vector query run in parallel, rejoin, and are fused by
// reciprocal rank fusion.
type RetrievalEngine struct {
	corpus   string
	index    ports.SearchIndex
	embedder ports.Embedder
	opts     RetrievalOptions
	logger   *slog.Logger
}

func NewRetrievalEngine(
	corpus string,
	index ports.SearchIndex,
	embedder ports.Embedder,
	opts RetrievalOptions,
	logger *slog.Logger,
) *RetrievalEngine {
	if opts.Overfetch < minOverfetch {
		opts.Overfetch = defaultOverfetch
	}
	if opts.RRFK <= 0 {
		opts.RRFK = defaultRRFK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrievalEngine{
		corpus:   corpus,
		index:    index,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
}

func (e *RetrievalEngine) Corpus() string {
	return e.corpus
}

// Retrieve returns up to limit fragments ordered by fused score, plus the
// retrieval mode actually used. Embedding or vector-path failure degrades
// to lexical-only; only both paths failing aborts with ErrIndexUnavailable.
func (e *RetrievalEngine) Retrieve(
	ctx context.Context,
	text string,
	limit int,
	filters domain.Filters,
	hybrid bool,
) ([]domain.Fragment, string, error) {
	if limit <= 0 {
		limit = domain.DefaultLimit
	}
	fetch := limit * e.opts.Overfetch

	var (
		wg       sync.WaitGroup
		lexical  []domain.Fragment
		lexErr   error
		vector   []domain.Fragment
		vecErr   error
		embedErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		lexical, lexErr = e.index.LexicalSearch(ctx, e.corpus, text, fetch, filters)
	}()

	if hybrid {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queryVector, err := e.embedder.EmbedQuery(ctx, text)
			if err != nil {
				embedErr = err
				return
			}
			vector, vecErr = e.index.VectorSearch(ctx, e.corpus, queryVector, fetch, filters)
		}()
	}
	wg.Wait()

	semanticDown := !hybrid || embedErr != nil || vecErr != nil
	if embedErr != nil {
		e.logger.Warn("embedding failed, degrading to lexical retrieval",
			"corpus", e.corpus, "error", embedErr)
	}
	if vecErr != nil {
		e.logger.Warn("vector query failed, degrading to lexical retrieval",
			"corpus", e.corpus, "error", vecErr)
	}

	if lexErr != nil {
		if semanticDown {
			return nil, "", domain.WrapError(domain.ErrIndexUnavailable, "retrieve",
				errors.Join(lexErr, embedErr, vecErr))
		}
		// Lexical path down but the semantic path delivered; serve it.
		e.logger.Warn("lexical query failed, serving semantic results only",
			"corpus", e.corpus, "error", lexErr)
		return trimFragments(fuseFragmentsRRF(nil, vector, e.opts.RRFK), limit),
			domain.RetrievalModeHybrid, nil
	}

	if semanticDown {
		return trimFragments(fuseFragmentsRRF(lexical, nil, e.opts.RRFK), limit),
			domain.RetrievalModeLexical, nil
	}
	return trimFragments(fuseFragmentsRRF(lexical, vector, e.opts.RRFK), limit),
		domain.RetrievalModeHybrid, nil
}
