// Package postgres persists the answer audit trail.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/corpusqa/corpusqa/internal/core/domain"
)

const (
	recentDefaultLimit = 20
	recentMaxLimit     = 100
)

type QueryLogRepository struct {
	db *sql.DB
}

func NewQueryLogRepository(db *sql.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

func (r *QueryLogRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *QueryLogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS query_log (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	corpus TEXT NOT NULL,
	retrieval_mode TEXT NOT NULL,
	provider TEXT NOT NULL,
	fragments_used INTEGER NOT NULL DEFAULT 0,
	latency_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_query_log_created_at ON query_log(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_query_log_corpus ON query_log(corpus);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Insert stores one audit record. Records arrive over the queue where a
// publish retry can duplicate them, so inserts are idempotent by id.
func (r *QueryLogRepository) Insert(ctx context.Context, record domain.AnswerRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO query_log (
	id, question, corpus, retrieval_mode, provider, fragments_used, latency_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING
`,
		record.ID, record.Question, record.Corpus, record.RetrievalMode,
		record.Provider, record.FragmentsUsed, record.LatencyMS, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query log record: %w", err)
	}
	return nil
}

func (r *QueryLogRepository) Recent(ctx context.Context, limit int) ([]domain.AnswerRecord, error) {
	if limit <= 0 {
		limit = recentDefaultLimit
	}
	if limit > recentMaxLimit {
		limit = recentMaxLimit
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, question, corpus, retrieval_mode, provider, fragments_used, latency_ms, created_at
FROM query_log
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.AnswerRecord, 0, limit)
	for rows.Next() {
		var record domain.AnswerRecord
		if err := rows.Scan(
			&record.ID, &record.Question, &record.Corpus, &record.RetrievalMode,
			&record.Provider, &record.FragmentsUsed, &record.LatencyMS, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan query log record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query log records: %w", err)
	}
	return records, nil
}

func (r *QueryLogRepository) Stats(ctx context.Context) (domain.QueryLogStats, error) {
	stats := domain.QueryLogStats{
		ByCorpus:   make(map[string]int64),
		ByProvider: make(map[string]int64),
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_log`).Scan(&stats.Total); err != nil {
		return domain.QueryLogStats{}, fmt.Errorf("count query log records: %w", err)
	}

	if err := r.groupCount(ctx, `SELECT corpus, COUNT(*) FROM query_log GROUP BY corpus`, stats.ByCorpus); err != nil {
		return domain.QueryLogStats{}, err
	}
	if err := r.groupCount(ctx, `SELECT provider, COUNT(*) FROM query_log GROUP BY provider`, stats.ByProvider); err != nil {
		return domain.QueryLogStats{}, err
	}
	return stats, nil
}

func (r *QueryLogRepository) groupCount(ctx context.Context, query string, into map[string]int64) error {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("group query log records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scan group row: %w", err)
		}
		into[key] = count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate group rows: %w", err)
	}
	return nil
}
