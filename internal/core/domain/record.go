package domain

import "time"

// AnswerRecord is the audit trail entry emitted for every computed
// (non-cached) answer. It travels over the queue and lands in the
// query log.
type AnswerRecord struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	Corpus        string    `json:"corpus"`
	RetrievalMode string    `json:"retrieval_mode"`
	Provider      string    `json:"provider"`
	FragmentsUsed int       `json:"fragments_used"`
	CacheHit      bool      `json:"cache_hit"`
	LatencyMS     int64     `json:"latency_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// IndexStats describes one corpus index.
type IndexStats struct {
	IndexName string  `json:"index_name"`
	Documents int64   `json:"documents"`
	SizeMB    float64 `json:"size_mb"`
}

// QueryLogStats summarizes the recorded audit trail.
type QueryLogStats struct {
	Total      int64            `json:"queries_recorded"`
	ByCorpus   map[string]int64 `json:"by_corpus"`
	ByProvider map[string]int64 `json:"by_provider"`
}
