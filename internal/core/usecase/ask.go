package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/corpusqa/corpusqa/internal/core/domain"
	"github.com/corpusqa/corpusqa/internal/core/ports"
)

// AskUseCase is the top-level query router: it resolves the corpus, consults
// the answer cache, and on a miss drives retrieval and the generation tier
// chain before caching and publishing the result.
type AskUseCase struct {
	primary   string
	engines   map[string]*RetrievalEngine
	generator *GenerationCoordinator
	cache     ports.AnswerCache
	queue     ports.AnswerQueue
	cacheTTL  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewAskUseCase(
	primary string,
	engines map[string]*RetrievalEngine,
	generator *GenerationCoordinator,
	cache ports.AnswerCache,
	queue ports.AnswerQueue,
	cacheTTL time.Duration,
	logger *slog.Logger,
) *AskUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AskUseCase{
		primary:   primary,
		engines:   engines,
		generator: generator,
		cache:     cache,
		queue:     queue,
		cacheTTL:  cacheTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// Ask answers one query. Cached answers are returned unchanged without any
// collaborator call; computed answers are cached and published to the audit
// queue before returning.
func (uc *AskUseCase) Ask(ctx context.Context, query domain.Query) (domain.Answer, error) {
	started := uc.now()

	query, engine, err := uc.route(query)
	if err != nil {
		return domain.Answer{}, err
	}

	signature := query.Signature()
	if answer, ok := uc.cacheLookup(ctx, signature); ok {
		uc.logger.Info("answer served from cache",
			"corpus", query.Corpus, "signature", shortSignature(signature))
		return answer, nil
	}

	fragments, mode, err := engine.Retrieve(ctx, query.Text, query.Limit, query.Filters, query.Hybrid)
	if err != nil {
		return domain.Answer{}, err
	}

	result, err := uc.generator.Generate(ctx, query.Text, query.Corpus, fragments)
	if err != nil {
		return domain.Answer{}, err
	}

	answer := domain.Answer{
		Question:      query.Text,
		Text:          result.Text,
		Sources:       collectSources(fragments[:result.FragmentsUsed]),
		FragmentsUsed: result.FragmentsUsed,
		RetrievalMode: mode,
		Provider:      result.Provider,
	}

	if err := uc.cache.Put(ctx, signature, answer, uc.cacheTTL); err != nil {
		uc.logger.Warn("cache write failed",
			"signature", shortSignature(signature), "error", err)
	}
	uc.publish(ctx, query, answer, started)

	return answer, nil
}

// Search runs retrieval only, for diagnostic surfaces.
func (uc *AskUseCase) Search(ctx context.Context, query domain.Query) ([]domain.Fragment, string, error) {
	query, engine, err := uc.route(query)
	if err != nil {
		return nil, "", err
	}
	return engine.Retrieve(ctx, query.Text, query.Limit, query.Filters, query.Hybrid)
}

func (uc *AskUseCase) route(query domain.Query) (domain.Query, *RetrievalEngine, error) {
	query = query.Normalized()
	if query.Corpus == "" {
		query.Corpus = uc.primary
	}
	if err := query.Validate(); err != nil {
		return query, nil, err
	}
	engine, ok := uc.engines[query.Corpus]
	if !ok {
		return query, nil, domain.WrapError(domain.ErrUnknownCorpus, "route query",
			fmt.Errorf("corpus %q is not configured", query.Corpus))
	}
	return query, engine, nil
}

func (uc *AskUseCase) cacheLookup(ctx context.Context, signature string) (domain.Answer, bool) {
	answer, ok, err := uc.cache.Get(ctx, signature)
	if err != nil {
		// A broken cache read is a miss, not a failed request.
		uc.logger.Warn("cache read failed",
			"signature", shortSignature(signature), "error", err)
		return domain.Answer{}, false
	}
	return answer, ok
}

func (uc *AskUseCase) publish(ctx context.Context, query domain.Query, answer domain.Answer, started time.Time) {
	if uc.queue == nil {
		return
	}
	record := domain.AnswerRecord{
		ID:            uuid.NewString(),
		Question:      query.Text,
		Corpus:        query.Corpus,
		RetrievalMode: answer.RetrievalMode,
		Provider:      answer.Provider,
		FragmentsUsed: answer.FragmentsUsed,
		LatencyMS:     uc.now().Sub(started).Milliseconds(),
		CreatedAt:     uc.now().UTC(),
	}
	if err := uc.queue.PublishAnswer(ctx, record); err != nil {
		uc.logger.Warn("answer event publish failed", "record_id", record.ID, "error", err)
	}
}

func collectSources(fragments []domain.Fragment) []string {
	sources := make([]string, 0, len(fragments))
	seen := make(map[string]struct{}, len(fragments))
	for _, fragment := range fragments {
		url := fragment.SourceURL
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		sources = append(sources, url)
	}
	return sources
}

func shortSignature(signature string) string {
	if len(signature) <= 12 {
		return signature
	}
	return signature[:12]
}
