package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultLimit = 5
	MinLimit     = 1
	MaxLimit     = 20
)

// Filters narrow index candidates before ranking. Fields are corpus
// specific: Ticker and FilingTypes apply to filing corpora, Categories to
// paper corpora. Unused fields are ignored by the index adapter.
type Filters struct {
	Ticker      string   `json:"ticker,omitempty"`
	FilingTypes []string `json:"filing_types,omitempty"`
	Categories  []string `json:"categories,omitempty"`
}

func (f Filters) IsZero() bool {
	return f.Ticker == "" && len(f.FilingTypes) == 0 && len(f.Categories) == 0
}

// Query is a single incoming question. Immutable once constructed; one per
// request.
type Query struct {
	Text    string  `json:"query"`
	Corpus  string  `json:"corpus"`
	Limit   int     `json:"limit"`
	Hybrid  bool    `json:"hybrid"`
	Filters Filters `json:"filters,omitempty"`
}

// Normalized returns a copy with defaults applied: empty limit becomes
// DefaultLimit, text is whitespace-trimmed, the ticker filter is upcased to
// match stored filing metadata. The corpus default is the router's concern.
func (q Query) Normalized() Query {
	q.Text = strings.TrimSpace(q.Text)
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	q.Filters.Ticker = strings.ToUpper(strings.TrimSpace(q.Filters.Ticker))
	return q
}

// Validate checks caller-controlled fields. Corpus membership is validated
// by the router against its configured set.
func (q Query) Validate() error {
	if q.Text == "" {
		return WrapError(ErrInvalidInput, "validate query", fmt.Errorf("query text is empty"))
	}
	if q.Limit < MinLimit || q.Limit > MaxLimit {
		return WrapError(ErrInvalidInput, "validate query",
			fmt.Errorf("limit %d outside range %d..%d", q.Limit, MinLimit, MaxLimit))
	}
	return nil
}

// Signature fingerprints the semantically relevant fields: text, corpus,
// limit and filters. The hybrid flag selects a retrieval tactic, not a
// different question, so it is excluded; filter lists are order-insensitive.
func (q Query) Signature() string {
	types := append([]string(nil), q.Filters.FilingTypes...)
	sort.Strings(types)
	categories := append([]string(nil), q.Filters.Categories...)
	sort.Strings(categories)

	payload := fmt.Sprintf("%q|%q|%d|%q|%q|%q",
		q.Text,
		q.Corpus,
		q.Limit,
		q.Filters.Ticker,
		strings.Join(types, ","),
		strings.Join(categories, ","),
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
