package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/corpusqa/corpusqa/internal/core/domain"
	"github.com/corpusqa/corpusqa/internal/core/ports"
)

const defaultContextTokens = 3072

// GenerationResult reports a completed tier chain: the answer text, the
// provider that produced it, how many fragments fit the context budget, and
// the full attempt history.
type GenerationResult struct {
	Text          string
	Provider      string
	FragmentsUsed int
	Attempts      []domain.GenerationAttempt
}

// GenerationCoordinator drives the ordered provider tier chain. Tiers are
// strictly sequential: tier n+1 starts only after tier n definitively
// failed, and a tier is tried exactly once per request.
type GenerationCoordinator struct {
	tiers       []ports.GenerationProvider
	tokens      ports.TokenCounter
	maxTokens   int
	tierTimeout time.Duration
	logger      *slog.Logger
}

func NewGenerationCoordinator(
	tiers []ports.GenerationProvider,
	tokens ports.TokenCounter,
	maxTokens int,
	tierTimeout time.Duration,
	logger *slog.Logger,
) *GenerationCoordinator {
	if maxTokens <= 0 {
		maxTokens = defaultContextTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationCoordinator{
		tiers:       tiers,
		tokens:      tokens,
		maxTokens:   maxTokens,
		tierTimeout: tierTimeout,
		logger:      logger,
	}
}

// Generate walks the tier chain until one provider answers. Any provider
// error, including a per-tier timeout, records an attempt and advances;
// caller cancellation stops the chain instead of advancing. When every tier
// fails the error is a TiersExhaustedError carrying the attempt history.
func (c *GenerationCoordinator) Generate(
	ctx context.Context,
	question string,
	corpus string,
	fragments []domain.Fragment,
) (GenerationResult, error) {
	if len(c.tiers) == 0 {
		return GenerationResult{}, domain.WrapError(domain.ErrGenerationUnavailable,
			"generate answer", fmt.Errorf("no generation tiers configured"))
	}

	used := c.fitContextBudget(corpus, fragments)
	block := renderContextBlock(corpus, fragments[:used])

	attempts := make([]domain.GenerationAttempt, 0, len(c.tiers))
	for i, provider := range c.tiers {
		started := time.Now()
		text, err := c.attemptTier(ctx, provider, question, block)
		attempt := domain.GenerationAttempt{
			Provider: provider.Name(),
			Tier:     i + 1,
			Latency:  time.Since(started),
		}
		if err == nil {
			attempts = append(attempts, attempt)
			return GenerationResult{
				Text:          text,
				Provider:      provider.Name(),
				FragmentsUsed: used,
				Attempts:      attempts,
			}, nil
		}

		attempt.Err = err.Error()
		attempts = append(attempts, attempt)
		c.logger.Warn("generation tier failed",
			"provider", provider.Name(), "tier", i+1, "error", err)

		if ctx.Err() != nil {
			return GenerationResult{Attempts: attempts},
				fmt.Errorf("generation interrupted: %w", ctx.Err())
		}
	}

	return GenerationResult{Attempts: attempts}, &domain.TiersExhaustedError{Attempts: attempts}
}

func (c *GenerationCoordinator) attemptTier(
	ctx context.Context,
	provider ports.GenerationProvider,
	question string,
	block string,
) (string, error) {
	if c.tierTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.tierTimeout)
		defer cancel()
	}
	text, err := provider.Generate(ctx, question, block)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("provider returned an empty answer")
	}
	return text, nil
}

// fitContextBudget returns how many leading fragments fit the token budget.
// Fragments drop from the lowest-scored end; the top fragment is never
// dropped even when it exceeds the budget alone.
func (c *GenerationCoordinator) fitContextBudget(corpus string, fragments []domain.Fragment) int {
	keep := len(fragments)
	for keep > 1 && c.countTokens(renderContextBlock(corpus, fragments[:keep])) > c.maxTokens {
		keep--
	}
	return keep
}

func (c *GenerationCoordinator) countTokens(text string) int {
	if c.tokens == nil {
		// Rough heuristic when no tokenizer is wired.
		return len(text) / 4
	}
	return c.tokens.Count(text)
}

// renderContextBlock concatenates fragments in fused order, each prefixed
// with its citation tag so providers can cite sources by tag.
func renderContextBlock(corpus string, fragments []domain.Fragment) string {
	var b strings.Builder
	for i, fragment := range fragments {
		b.WriteString(fragment.CitationTag(i+1, corpus))
		if fragment.Title != "" {
			b.WriteString(" ")
			b.WriteString(fragment.Title)
		}
		b.WriteString("\n")
		b.WriteString(fragment.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}
