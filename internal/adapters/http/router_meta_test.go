package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corpusqa/corpusqa/internal/config"
	"github.com/corpusqa/corpusqa/internal/core/domain"
)

func TestHealthzReportsProbeResults(t *testing.T) {
	probes := map[string]HealthProbe{
		"index": func(context.Context) error { return nil },
		"cache": func(context.Context) error { return errors.New("connection refused") },
	}
	handler := NewRouter(
		config.Config{ServiceVersion: "1.2.3"},
		&queryServiceFake{}, &queryLogFake{}, &indexStatsFake{},
		nil, probes, nil, testLogger(),
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for degraded dependency, got %d", res.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Fatalf("expected degraded status, got %q", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %q", resp.Version)
	}
	if resp.Services["index"] != "ok" {
		t.Fatalf("expected index ok, got %q", resp.Services["index"])
	}
	if !strings.HasPrefix(resp.Services["cache"], "degraded: ") {
		t.Fatalf("expected degraded cache entry, got %q", resp.Services["cache"])
	}
}

func TestHealthzAllProbesHealthy(t *testing.T) {
	probes := map[string]HealthProbe{
		"index": func(context.Context) error { return nil },
		"queue": func(context.Context) error { return nil },
	}
	handler := NewRouter(
		config.Config{},
		&queryServiceFake{}, &queryLogFake{}, &indexStatsFake{},
		nil, probes, nil, testLogger(),
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("expected ok status, got %q", resp.Status)
	}
}

func TestStatsAggregatesCorporaAndQueryLog(t *testing.T) {
	index := &indexStatsFake{stats: map[string]domain.IndexStats{
		"arxiv":     {IndexName: "arxiv-papers-chunks", Documents: 1200, SizeMB: 48.5},
		"financial": {IndexName: "financial-docs-chunks", Documents: 800, SizeMB: 31.2},
	}}
	queries := &queryLogFake{stats: domain.QueryLogStats{
		Total:      42,
		ByCorpus:   map[string]int64{"arxiv": 30, "financial": 12},
		ByProvider: map[string]int64{"ollama": 40, "gemini": 2},
	}}
	handler := NewRouter(
		config.Config{},
		&queryServiceFake{}, queries, index,
		[]string{"arxiv", "financial"}, nil, nil, testLogger(),
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp statsResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode stats response: %v", err)
	}
	if resp.TotalDocuments != 2000 {
		t.Fatalf("expected 2000 total documents, got %d", resp.TotalDocuments)
	}
	if resp.Corpora["arxiv"].IndexName != "arxiv-papers-chunks" {
		t.Fatalf("unexpected arxiv stats: %+v", resp.Corpora["arxiv"])
	}
	if resp.QueryLog.Total != 42 {
		t.Fatalf("expected 42 recorded queries, got %d", resp.QueryLog.Total)
	}
}

func TestStatsSurfacesIndexOutage(t *testing.T) {
	index := &indexStatsFake{err: domain.WrapError(domain.ErrTemporary, "index stats", errors.New("no route to host"))}
	handler := NewRouter(
		config.Config{},
		&queryServiceFake{}, &queryLogFake{}, index,
		[]string{"arxiv"}, nil, nil, testLogger(),
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "no route to host") {
		t.Fatalf("transport detail leaked into response: %s", res.Body.String())
	}
}

func TestRecentQueriesBindsLimit(t *testing.T) {
	queries := &queryLogFake{records: []domain.AnswerRecord{
		{ID: "rec-2", Question: "newest", Corpus: "arxiv", Provider: "ollama", CreatedAt: time.Now()},
		{ID: "rec-1", Question: "older", Corpus: "arxiv", Provider: "gemini", CreatedAt: time.Now().Add(-time.Hour)},
	}}
	handler := NewRouter(
		config.Config{},
		&queryServiceFake{}, queries, &indexStatsFake{},
		nil, nil, nil, testLogger(),
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queries/recent?limit=7", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if queries.gotLimit != 7 {
		t.Fatalf("expected bound limit 7, got %d", queries.gotLimit)
	}

	var resp recentQueriesResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.Queries) != 2 {
		t.Fatalf("expected 2 queries, got count=%d len=%d", resp.Count, len(resp.Queries))
	}
	if resp.Queries[0].ID != "rec-2" {
		t.Fatalf("expected newest record first, got %q", resp.Queries[0].ID)
	}
}

func TestRecentQueriesDefaultsLimitWhenAbsent(t *testing.T) {
	queries := &queryLogFake{gotLimit: -1}
	handler := NewRouter(
		config.Config{},
		&queryServiceFake{}, queries, &indexStatsFake{},
		nil, nil, nil, testLogger(),
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queries/recent", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if queries.gotLimit != 0 {
		t.Fatalf("expected zero limit passed through for repository default, got %d", queries.gotLimit)
	}
	if !strings.Contains(res.Body.String(), `"queries":[]`) {
		t.Fatalf("expected empty queries array, got %s", res.Body.String())
	}
}

func TestRecentQueriesRejectsNonIntegerLimit(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		&queryServiceFake{}, &queryLogFake{}, &indexStatsFake{},
		nil, nil, nil, testLogger(),
	).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queries/recent?limit=soon", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Body.String(), "limit") {
		t.Fatalf("expected limit mentioned in error, got %s", res.Body.String())
	}
}
