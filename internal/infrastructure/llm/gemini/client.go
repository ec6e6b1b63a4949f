// Package gemini adapts the Google Gemini REST API as a generation tier.
package gemini

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

const ProviderName = "gemini"

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

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *Provider) Generate(ctx context.Context, question, contextBlock string) (string, error) {
	request := generateRequest{
		Contents: []content{{
			Parts: []part{{Text: llm.BuildAnswerPrompt(question, contextBlock)}},
		}},
	}
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, p.model)

	var decoded generateResponse
	err = p.executor.Execute(ctx, "gemini.generate", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create generate request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", p.apiKey)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("gemini generate request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewStatusError("gemini", "generate", resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("decode generate response: %w", err)
		}
		return nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return "", err
	}

	if len(decoded.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	var b strings.Builder
	for _, piece := range decoded.Candidates[0].Content.Parts {
		b.WriteString(piece.Text)
	}
	return strings.TrimSpace(b.String()), nil
}
