package opensearch

import (
	"context"
	"fmt"
	"strings"

	"github.com/corpusqa/corpusqa/internal/core/domain"
)

type searchHit struct {
	ID     string         `json:"_id"`
	Score  float64        `json:"_score"`
	Source map[string]any `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

// LexicalSearch runs a boosted BM25 query over the corpus's text fields.
func (c *Client) LexicalSearch(ctx context.Context, corpus, text string, limit int, filters domain.Filters) ([]domain.Fragment, error) {
	t, err := c.target(corpus)
	if err != nil {
		return nil, err
	}

	should := make([]map[string]any, 0, len(t.fields))
	for _, f := range t.fields {
		should = append(should, map[string]any{
			"match": map[string]any{
				f.name: map[string]any{"query": text, "boost": f.boost},
			},
		})
	}
	boolQuery := map[string]any{
		"should":               should,
		"minimum_should_match": 1,
	}
	if clauses := filterClauses(filters); len(clauses) > 0 {
		boolQuery["filter"] = clauses
	}

	body := map[string]any{
		"size":    limit,
		"query":   map[string]any{"bool": boolQuery},
		"_source": map[string]any{"excludes": []string{t.vectorField}},
	}

	hits, err := c.postSearch(ctx, "opensearch.lexical."+t.index, t.index, body)
	if err != nil {
		return nil, err
	}

	fragments := make([]domain.Fragment, 0, len(hits))
	for _, hit := range hits {
		frag := fragmentFromHit(hit)
		frag.LexicalScore = hit.Score
		fragments = append(fragments, frag)
	}
	return fragments, nil
}

// VectorSearch runs an approximate k-NN query against the corpus's
// embedding field. k is doubled so post-filtering still fills the page.
func (c *Client) VectorSearch(ctx context.Context, corpus string, vector []float32, limit int, filters domain.Filters) ([]domain.Fragment, error) {
	t, err := c.target(corpus)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("opensearch: empty query vector")
	}

	knn := map[string]any{
		"vector": vector,
		"k":      limit * 2,
	}
	if clauses := filterClauses(filters); len(clauses) > 0 {
		knn["filter"] = map[string]any{
			"bool": map[string]any{"filter": clauses},
		}
	}

	body := map[string]any{
		"size":    limit,
		"query":   map[string]any{"knn": map[string]any{t.vectorField: knn}},
		"_source": map[string]any{"excludes": []string{t.vectorField}},
	}

	hits, err := c.postSearch(ctx, "opensearch.vector."+t.index, t.index, body)
	if err != nil {
		return nil, err
	}

	fragments := make([]domain.Fragment, 0, len(hits))
	for _, hit := range hits {
		frag := fragmentFromHit(hit)
		frag.VectorScore = hit.Score
		fragments = append(fragments, frag)
	}
	return fragments, nil
}

func filterClauses(filters domain.Filters) []map[string]any {
	var clauses []map[string]any
	if filters.Ticker != "" {
		clauses = append(clauses, map[string]any{
			"term": map[string]any{"ticker_symbol": filters.Ticker},
		})
	}
	if len(filters.FilingTypes) > 0 {
		clauses = append(clauses, map[string]any{
			"terms": map[string]any{"document_type": filters.FilingTypes},
		})
	}
	if len(filters.Categories) > 0 {
		clauses = append(clauses, map[string]any{
			"terms": map[string]any{"categories": filters.Categories},
		})
	}
	return clauses
}

func fragmentFromHit(hit searchHit) domain.Fragment {
	src := hit.Source

	frag := domain.Fragment{
		DocumentID: stringField(src, "document_id"),
		Title:      stringField(src, "title"),
		Text:       stringField(src, "chunk_text"),
		SourceURL:  stringField(src, "source_url"),
	}
	if frag.DocumentID == "" {
		frag.DocumentID = hit.ID
	}
	if frag.Title == "" {
		frag.Title = stringField(src, "section_title")
	}

	fields := make(map[string]string)
	if id := stringField(src, "arxiv_id"); id != "" {
		fields["paper_id"] = id
		if frag.SourceURL == "" {
			frag.SourceURL = fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", id)
		}
	}
	setField(fields, "ticker", stringField(src, "ticker_symbol"))
	setField(fields, "company_name", stringField(src, "company_name"))
	setField(fields, "filing_type", stringField(src, "document_type"))
	setField(fields, "filed_at", dateOnly(stringField(src, "filing_date")))
	if len(fields) > 0 {
		frag.Fields = fields
	}
	return frag
}

func setField(fields map[string]string, key, value string) {
	if value != "" {
		fields[key] = value
	}
}

// dateOnly strips the time part of an RFC 3339 timestamp; date mappings
// come back either way depending on how the document was indexed.
func dateOnly(v string) string {
	if idx := strings.IndexByte(v, 'T'); idx > 0 {
		return v[:idx]
	}
	return v
}

func stringField(src map[string]any, key string) string {
	v, ok := src[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
