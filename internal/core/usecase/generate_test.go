package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/corpusqa/corpusqa/internal/core/domain"
	"github.com/corpusqa/corpusqa/internal/core/ports"
)

type providerFake struct {
	name     string
	text     string
	err      error
	calls    int
	delay    time.Duration
	lastSeen string
	order    *[]string
}

func (f *providerFake) Name() string { return f.name }

func (f *providerFake) Generate(ctx context.Context, _ string, block string) (string, error) {
	f.calls++
	f.lastSeen = block
	if f.order != nil {
		*f.order = append(*f.order, f.name)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type runeCounter struct{}

func (runeCounter) Count(text string) int { return utf8.RuneCountInString(text) }

func newCoordinator(maxTokens int, tiers ...ports.GenerationProvider) *GenerationCoordinator {
	return NewGenerationCoordinator(tiers, runeCounter{}, maxTokens, 0, testLogger())
}

func scoredFragments(n, size int) []domain.Fragment {
	fragments := make([]domain.Fragment, 0, n)
	for i := 0; i < n; i++ {
		fragments = append(fragments, domain.Fragment{
			DocumentID: string(rune('a' + i)),
			Text:       strings.Repeat("x", size),
			FusedScore: float64(n - i),
		})
	}
	return fragments
}

func TestGenerateFirstTierSuccessStopsChain(t *testing.T) {
	first := &providerFake{name: "ollama", text: "the answer"}
	second := &providerFake{name: "gemini", text: "unreachable"}
	coordinator := newCoordinator(0, first, second)

	result, err := coordinator.Generate(context.Background(), "q", domain.CorpusArxiv, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Provider != "ollama" || result.Text != "the answer" {
		t.Fatalf("unexpected result %+v", result)
	}
	if second.calls != 0 {
		t.Fatalf("tier 2 must not run after tier 1 succeeded, got %d calls", second.calls)
	}
	if len(result.Attempts) != 1 || result.Attempts[0].Failed() {
		t.Fatalf("expected a single successful attempt, got %+v", result.Attempts)
	}
}

func TestGenerateAdvancesThroughTimeouts(t *testing.T) {
	first := &providerFake{name: "ollama", err: context.DeadlineExceeded}
	second := &providerFake{name: "gemini", err: context.DeadlineExceeded}
	third := &providerFake{name: "openai", text: "answer text"}
	coordinator := newCoordinator(0, first, second, third)

	result, err := coordinator.Generate(context.Background(), "q", domain.CorpusArxiv, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Provider != "openai" {
		t.Fatalf("provider = %s, want openai", result.Provider)
	}
	if len(result.Attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(result.Attempts))
	}
	if !result.Attempts[0].Failed() || !result.Attempts[1].Failed() || result.Attempts[2].Failed() {
		t.Fatalf("attempt outcomes wrong: %+v", result.Attempts)
	}
}

func TestGenerateAllTiersExhausted(t *testing.T) {
	var order []string
	first := &providerFake{name: "ollama", err: errors.New("connection refused"), order: &order}
	second := &providerFake{name: "gemini", err: errors.New("quota exceeded"), order: &order}
	third := &providerFake{name: "openai", err: errors.New("bad gateway"), order: &order}
	coordinator := newCoordinator(0, first, second, third)

	result, err := coordinator.Generate(context.Background(), "q", domain.CorpusArxiv, nil)
	if !domain.IsKind(err, domain.ErrGenerationUnavailable) {
		t.Fatalf("expected ErrGenerationUnavailable, got %v", err)
	}
	var exhausted *domain.TiersExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected TiersExhaustedError, got %T", err)
	}
	if len(exhausted.Attempts) != 3 || len(result.Attempts) != 3 {
		t.Fatalf("attempt history must cover every tier: %+v", exhausted.Attempts)
	}
	want := []string{"ollama", "gemini", "openai"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("tier order = %v, want %v", order, want)
		}
	}
	for i, attempt := range exhausted.Attempts {
		if attempt.Tier != i+1 {
			t.Fatalf("attempt %d has tier %d", i, attempt.Tier)
		}
	}
}

func TestGenerateEmptyAnswerCountsAsFailure(t *testing.T) {
	first := &providerFake{name: "ollama", text: "   "}
	second := &providerFake{name: "gemini", text: "real answer"}
	coordinator := newCoordinator(0, first, second)

	result, err := coordinator.Generate(context.Background(), "q", domain.CorpusArxiv, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Provider != "gemini" {
		t.Fatalf("blank answer must advance the chain, provider = %s", result.Provider)
	}
}

func TestGenerateCallerCancellationStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &providerFake{name: "ollama", delay: time.Second}
	second := &providerFake{name: "gemini", text: "unused"}
	coordinator := newCoordinator(0, first, second)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := coordinator.Generate(ctx, "q", domain.CorpusArxiv, nil)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if second.calls != 0 {
		t.Fatalf("cancellation must not advance to the next tier")
	}
}

func TestGenerateNoTiersConfigured(t *testing.T) {
	coordinator := newCoordinator(0)

	_, err := coordinator.Generate(context.Background(), "q", domain.CorpusArxiv, nil)
	if !domain.IsKind(err, domain.ErrGenerationUnavailable) {
		t.Fatalf("expected ErrGenerationUnavailable, got %v", err)
	}
}

func TestGenerateContextBudgetDropsLowestScoredFirst(t *testing.T) {
	provider := &providerFake{name: "ollama", text: "ok"}
	coordinator := newCoordinator(500, provider)

	fragments := scoredFragments(5, 300)
	result, err := coordinator.Generate(context.Background(), "q", domain.CorpusArxiv, fragments)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.FragmentsUsed != 1 {
		t.Fatalf("fragments used = %d, want 1", result.FragmentsUsed)
	}
	if !strings.Contains(provider.lastSeen, fragments[0].Text) {
		t.Fatalf("highest-scored fragment missing from context block")
	}
	if strings.Contains(provider.lastSeen, "[2.") {
		t.Fatalf("dropped fragment leaked into context block:\n%s", provider.lastSeen)
	}
}

func TestGenerateTopFragmentSurvivesOversizedBudget(t *testing.T) {
	provider := &providerFake{name: "ollama", text: "ok"}
	coordinator := newCoordinator(100, provider)

	result, err := coordinator.Generate(context.Background(), "q", domain.CorpusArxiv, scoredFragments(1, 600))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.FragmentsUsed != 1 {
		t.Fatalf("the top fragment must never be dropped, used = %d", result.FragmentsUsed)
	}
}

func TestGenerateBudgetKeepsAllWhenUnderLimit(t *testing.T) {
	provider := &providerFake{name: "ollama", text: "ok"}
	coordinator := newCoordinator(5000, provider)

	result, err := coordinator.Generate(context.Background(), "q", domain.CorpusArxiv, scoredFragments(5, 300))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.FragmentsUsed != 5 {
		t.Fatalf("fragments used = %d, want 5", result.FragmentsUsed)
	}
}
