package bootstrap

import (
	"context"
	"time"

	"github.com/corpusqa/corpusqa/internal/core/domain"
	"github.com/corpusqa/corpusqa/internal/core/ports"
	"github.com/corpusqa/corpusqa/internal/observability/metrics"
)

// instrumentedProvider counts tier attempts and their latency without the
// coordinator knowing about metrics.
type instrumentedProvider struct {
	inner   ports.GenerationProvider
	metrics *metrics.HTTPServerMetrics
	service string
}

func (p instrumentedProvider) Name() string { return p.inner.Name() }

func (p instrumentedProvider) Generate(ctx context.Context, question, contextBlock string) (string, error) {
	started := time.Now()
	text, err := p.inner.Generate(ctx, question, contextBlock)
	p.metrics.RecordProviderAttempt(p.service, p.inner.Name(), err != nil, time.Since(started))
	return text, err
}

type instrumentedCache struct {
	inner   ports.AnswerCache
	metrics *metrics.HTTPServerMetrics
	service string
}

func (c instrumentedCache) Get(ctx context.Context, signature string) (domain.Answer, bool, error) {
	answer, hit, err := c.inner.Get(ctx, signature)
	switch {
	case err != nil:
		c.metrics.RecordCacheLookup(c.service, "error")
	case hit:
		c.metrics.RecordCacheLookup(c.service, "hit")
	default:
		c.metrics.RecordCacheLookup(c.service, "miss")
	}
	return answer, hit, err
}

func (c instrumentedCache) Put(ctx context.Context, signature string, answer domain.Answer, ttl time.Duration) error {
	return c.inner.Put(ctx, signature, answer, ttl)
}
