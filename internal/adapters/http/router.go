package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/corpusqa/corpusqa/internal/config"
	"github.com/corpusqa/corpusqa/internal/core/domain"
	"github.com/corpusqa/corpusqa/internal/core/ports"
	"github.com/corpusqa/corpusqa/internal/observability/metrics"
)

const (
	serviceName        = "api"
	healthProbeTimeout = 2 * time.Second
)

// HealthProbe reports whether one dependency is reachable. Probes must
// honor ctx; the health endpoint bounds them with a shared deadline.
type HealthProbe func(ctx context.Context) error

// IndexStatsSource is the slice of the search index the stats endpoint
// reads.
type IndexStatsSource interface {
	Stats(ctx context.Context, corpus string) (domain.IndexStats, error)
}

// QueryLogReader is the read-only view of the audit trail served over
// HTTP. Writes stay with the worker.
type QueryLogReader interface {
	Recent(ctx context.Context, limit int) ([]domain.AnswerRecord, error)
	Stats(ctx context.Context) (domain.QueryLogStats, error)
}

type Router struct {
	cfg     config.Config
	ask     ports.QueryService
	queries QueryLogReader
	index   IndexStatsSource
	corpora []string
	probes  map[string]HealthProbe
	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger
}

func NewRouter(
	cfg config.Config,
	ask ports.QueryService,
	queries QueryLogReader,
	index IndexStatsSource,
	corpora []string,
	probes map[string]HealthProbe,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:     cfg,
		ask:     ask,
		queries: queries,
		index:   index,
		corpora: corpora,
		probes:  probes,
		metrics: m,
		logger:  logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/api/v1/ask", rt.askQuestion)
	mux.HandleFunc("/api/v1/stats", rt.corpusStats)
	mux.HandleFunc("/api/v1/queries/recent", rt.recentQueries)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	handler := requestValidationMiddleware(mux)
	if rt.cfg.APIMaxInflight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInflight, defaultBackpressureWait)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		burst := rt.cfg.APIRateLimitBurst
		if burst <= 0 {
			burst = rt.cfg.APIRateLimitRPS
		}
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, burst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	return recoverMiddleware(rt.logger, handler)
}

type askRequest struct {
	Query   string      `json:"query"`
	Corpus  string      `json:"corpus"`
	Limit   int         `json:"limit"`
	Hybrid  *bool       `json:"hybrid"`
	Filters *filtersDTO `json:"filters"`
}

type filtersDTO struct {
	Ticker      string   `json:"ticker"`
	FilingTypes []string `json:"filing_types"`
	Categories  []string `json:"categories"`
}

// toQuery applies the wire defaults: hybrid retrieval is on unless the
// caller disabled it explicitly.
func (req askRequest) toQuery() domain.Query {
	query := domain.Query{
		Text:   req.Query,
		Corpus: req.Corpus,
		Limit:  req.Limit,
		Hybrid: req.Hybrid == nil || *req.Hybrid,
	}
	if req.Filters != nil {
		query.Filters = domain.Filters{
			Ticker:      req.Filters.Ticker,
			FilingTypes: req.Filters.FilingTypes,
			Categories:  req.Filters.Categories,
		}
	}
	return query
}

func (rt *Router) askQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	query := req.toQuery()

	started := time.Now()
	answer, err := rt.ask.Ask(r.Context(), query)
	if err != nil {
		rt.recordAskOutcome(query.Corpus, askOutcome(err))
		rt.respondError(w, r, err)
		return
	}

	rt.recordAskOutcome(query.Corpus, "success")
	if rt.metrics != nil {
		rt.metrics.RecordAskObservation(serviceName, query.Corpus,
			answer.RetrievalMode, answer.FragmentsUsed, time.Since(started))
	}
	writeJSON(w, http.StatusOK, answer)
}

type healthResponse struct {
	Status   string            `json:"status"`
	Service  string            `json:"service"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	resp := healthResponse{
		Status:   "ok",
		Service:  serviceName,
		Version:  rt.cfg.ServiceVersion,
		Services: make(map[string]string, len(rt.probes)),
	}
	status := http.StatusOK
	for name, probe := range rt.probes {
		if err := probe(ctx); err != nil {
			resp.Services[name] = "degraded: " + err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Services[name] = "ok"
	}
	writeJSON(w, status, resp)
}

type statsResponse struct {
	Corpora        map[string]domain.IndexStats `json:"corpora"`
	TotalDocuments int64                        `json:"total_documents"`
	QueryLog       domain.QueryLogStats         `json:"query_log"`
}

func (rt *Router) corpusStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	resp := statsResponse{Corpora: make(map[string]domain.IndexStats, len(rt.corpora))}
	for _, corpus := range rt.corpora {
		stats, err := rt.index.Stats(r.Context(), corpus)
		if err != nil {
			rt.respondError(w, r, err)
			return
		}
		resp.Corpora[corpus] = stats
		resp.TotalDocuments += stats.Documents
	}

	logStats, err := rt.queries.Stats(r.Context())
	if err != nil {
		rt.respondError(w, r, err)
		return
	}
	resp.QueryLog = logStats

	writeJSON(w, http.StatusOK, resp)
}

type recentQueriesResponse struct {
	Queries []domain.AnswerRecord `json:"queries"`
	Count   int                   `json:"count"`
}

func (rt *Router) recentQueries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var limit int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer"})
		return
	}

	records, err := rt.queries.Recent(r.Context(), limit)
	if err != nil {
		rt.respondError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.AnswerRecord{}
	}
	writeJSON(w, http.StatusOK, recentQueriesResponse{Queries: records, Count: len(records)})
}

func (rt *Router) recordAskOutcome(corpus, outcome string) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordAskOutcome(serviceName, corpus, outcome)
}

func (rt *Router) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err)
	}
	writeError(w, status, err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
