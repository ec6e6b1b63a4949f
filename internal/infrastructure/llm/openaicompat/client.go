// Package openaicompat adapts any OpenAI-compatible chat completions
// endpoint as a generation tier. The default target is api.openai.com but
// self-hosted gateways speaking the same wire format work unchanged.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/corpusqa/corpusqa/internal/infrastructure/llm"
	"github.com/corpusqa/corpusqa/internal/infrastructure/resilience"
)

const ProviderName = "openai"

type Provider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey, model string, executor *resilience.Executor) *Provider {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultPolicy().SingleAttempt(), nil)
	}
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

func (p *Provider) Name() string { return ProviderName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *Provider) Generate(ctx context.Context, question, contextBlock string) (string, error) {
	request := chatCompletionRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "user", Content: llm.BuildAnswerPrompt(question, contextBlock)},
		},
		Stream: false,
	}
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	var decoded chatCompletionResponse
	err = p.executor.Execute(ctx, "openai.generate", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create chat request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("openai chat request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewStatusError("openai", "generate", resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("decode chat response: %w", err)
		}
		return nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return "", err
	}

	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
