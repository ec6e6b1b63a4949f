package ports

import (
	"context"
	"time"

	"github.com/corpusqa/corpusqa/internal/core/domain"
)

// Embedder converts query text into a fixed-length vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchIndex issues ranked lexical and vector queries against a corpus
// index. Returned slices are rank-ordered by the index's own scoring;
// filters are applied inside the query, never after it.
type SearchIndex interface {
	LexicalSearch(ctx context.Context, corpus, text string, limit int, filters domain.Filters) ([]domain.Fragment, error)
	VectorSearch(ctx context.Context, corpus string, vector []float32, limit int, filters domain.Filters) ([]domain.Fragment, error)
	Stats(ctx context.Context, corpus string) (domain.IndexStats, error)
	Ping(ctx context.Context) error
}

// GenerationProvider is one tier of the generation fallback chain.
// Implementations own credentials, model selection and any internal
// retries; the coordinator sees exactly one attempt per tier.
type GenerationProvider interface {
	Name() string
	Generate(ctx context.Context, question, contextBlock string) (string, error)
}

// AnswerCache maps query signatures to previously computed answers.
type AnswerCache interface {
	Get(ctx context.Context, signature string) (domain.Answer, bool, error)
	Put(ctx context.Context, signature string, answer domain.Answer, ttl time.Duration) error
}

// AnswerQueue publishes and consumes answer audit events.
type AnswerQueue interface {
	PublishAnswer(ctx context.Context, record domain.AnswerRecord) error
	SubscribeAnswers(ctx context.Context, handler func(context.Context, domain.AnswerRecord) error) error
}

// QueryLog persists and reads the answer audit trail.
type QueryLog interface {
	Insert(ctx context.Context, record domain.AnswerRecord) error
	Recent(ctx context.Context, limit int) ([]domain.AnswerRecord, error)
	Stats(ctx context.Context) (domain.QueryLogStats, error)
}

// TokenCounter measures text against the generation context budget.
type TokenCounter interface {
	Count(text string) int
}
