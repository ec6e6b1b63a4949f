// Package ollama adapts a local Ollama server as the embedding backend and
// the first generation tier.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/corpusqa/corpusqa/internal/infrastructure/llm"
	"github.com/corpusqa/corpusqa/internal/infrastructure/resilience"
)

// ProviderName is the tier name the generation chain reports for Ollama.
const ProviderName = "ollama"

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Embedder turns query text into vectors via /api/embed. Embedding calls
// retry: a failed embed only degrades retrieval, so a second try is cheap.
type Embedder struct {
	client   *Client
	executor *resilience.Executor
}

func NewEmbedder(client *Client, executor *resilience.Executor) *Embedder {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultPolicy(), nil)
	}
	return &Embedder{client: client, executor: executor}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.executor.Execute(ctx, "ollama.embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, resilience.WrapTemporary("ollama.embed", err)
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Provider is the Ollama generation tier. Generation never retries inside
// the tier; a failure hands the request to the next provider.
type Provider struct {
	client   *Client
	executor *resilience.Executor
}

func NewProvider(client *Client, executor *resilience.Executor) *Provider {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultPolicy().SingleAttempt(), nil)
	}
	return &Provider{client: client, executor: executor}
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) Generate(ctx context.Context, question, contextBlock string) (string, error) {
	request := map[string]any{
		"model":  p.client.genModel,
		"prompt": llm.BuildAnswerPrompt(question, contextBlock),
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	err := p.executor.Execute(ctx, "ollama.generate", func(ctx context.Context) error {
		return p.client.postJSON(ctx, "/api/generate", request, &response, "generate")
	}, resilience.ClassifyHTTP)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
