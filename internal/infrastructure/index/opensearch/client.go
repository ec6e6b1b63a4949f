package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/corpusqa/corpusqa/internal/core/domain"
	"github.com/corpusqa/corpusqa/internal/infrastructure/resilience"
)

// Corpus maps one logical corpus onto an OpenSearch index. LexicalFields
// accept "field" or "field^boost" notation.
type Corpus struct {
	Name          string
	Index         string
	LexicalFields []string
	VectorField   string
}

type boostedField struct {
	name  string
	boost float64
}

type corpusTarget struct {
	index       string
	fields      []boostedField
	vectorField string
}

// Client talks to OpenSearch over its REST API. One client serves every
// configured corpus; lexical and vector queries stay separate so callers
// can fuse and degrade per leg.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
	corpora    map[string]corpusTarget
}

func New(baseURL string, corpora []Corpus, timeout time.Duration, executor *resilience.Executor, logger *slog.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultPolicy(), logger)
	}
	if logger == nil {
		logger = slog.Default()
	}

	targets := make(map[string]corpusTarget, len(corpora))
	for _, c := range corpora {
		if c.Name == "" || c.Index == "" {
			return nil, fmt.Errorf("opensearch: corpus needs a name and an index, got %q/%q", c.Name, c.Index)
		}
		fields, err := parseBoostedFields(c.LexicalFields)
		if err != nil {
			return nil, fmt.Errorf("opensearch: corpus %q: %w", c.Name, err)
		}
		vectorField := c.VectorField
		if vectorField == "" {
			vectorField = "embedding"
		}
		targets[c.Name] = corpusTarget{index: c.Index, fields: fields, vectorField: vectorField}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
		logger:     logger,
		corpora:    targets,
	}, nil
}

func parseBoostedFields(raw []string) ([]boostedField, error) {
	if len(raw) == 0 {
		return []boostedField{{name: "chunk_text", boost: 1.0}}, nil
	}
	fields := make([]boostedField, 0, len(raw))
	for _, entry := range raw {
		name, boostPart, found := strings.Cut(strings.TrimSpace(entry), "^")
		if name == "" {
			return nil, fmt.Errorf("empty lexical field in %q", entry)
		}
		boost := 1.0
		if found {
			parsed, err := strconv.ParseFloat(boostPart, 64)
			if err != nil || parsed <= 0 {
				return nil, fmt.Errorf("bad boost in lexical field %q", entry)
			}
			boost = parsed
		}
		fields = append(fields, boostedField{name: name, boost: boost})
	}
	return fields, nil
}

func (c *Client) target(corpus string) (corpusTarget, error) {
	t, ok := c.corpora[corpus]
	if !ok {
		return corpusTarget{}, fmt.Errorf("opensearch: corpus %q not configured", corpus)
	}
	return t, nil
}

// Ping reports whether the cluster answers and is not red. Health probes
// run outside the executor so they never trip a breaker.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/_cluster/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("opensearch health request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError("health", resp)
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	switch health.Status {
	case "green", "yellow":
		return nil
	default:
		return fmt.Errorf("opensearch cluster status: %s", health.Status)
	}
}

// Stats returns document count and on-disk size for the corpus index.
func (c *Client) Stats(ctx context.Context, corpus string) (domain.IndexStats, error) {
	t, err := c.target(corpus)
	if err != nil {
		return domain.IndexStats{}, err
	}

	operation := "opensearch.stats." + t.index
	url := fmt.Sprintf("%s/%s/_stats", c.baseURL, t.index)

	var decoded struct {
		Indices map[string]struct {
			Total struct {
				Docs struct {
					Count int64 `json:"count"`
				} `json:"docs"`
				Store struct {
					SizeInBytes int64 `json:"size_in_bytes"`
				} `json:"store"`
			} `json:"total"`
		} `json:"indices"`
	}

	err = c.executor.Execute(ctx, operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create stats request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("opensearch stats request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return statusError(operation, resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("decode stats response: %w", err)
		}
		return nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return domain.IndexStats{}, resilience.WrapTemporary(operation, err)
	}

	stats := domain.IndexStats{IndexName: t.index}
	if idx, ok := decoded.Indices[t.index]; ok {
		stats.Documents = idx.Total.Docs.Count
		stats.SizeMB = float64(idx.Total.Store.SizeInBytes) / (1024 * 1024)
	}
	return stats, nil
}

func (c *Client) postSearch(ctx context.Context, operation, index string, body map[string]any) ([]searchHit, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/%s/_search", c.baseURL, index)

	var hits []searchHit
	err = c.executor.Execute(ctx, operation, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create search request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("opensearch search request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return statusError(operation, resp)
		}

		var decoded searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("decode search response: %w", err)
		}
		hits = decoded.Hits.Hits
		return nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, resilience.WrapTemporary(operation, err)
	}
	return hits, nil
}

func statusError(operation string, resp *http.Response) error {
	return resilience.NewStatusError("opensearch", operation, resp)
}
