package ports

import (
	"context"

	"github.com/corpusqa/corpusqa/internal/core/domain"
)

// QueryService is the inbound contract for question answering.
type QueryService interface {
	Ask(ctx context.Context, query domain.Query) (domain.Answer, error)
}

// FragmentSearcher is the inbound read model for retrieval without
// generation, used by diagnostic surfaces.
type FragmentSearcher interface {
	Search(ctx context.Context, query domain.Query) ([]domain.Fragment, string, error)
}
