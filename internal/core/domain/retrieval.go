package domain

// Retrieval modes reported on an Answer. Lexical means the semantic path
// was skipped or degraded for this request.
const (
	RetrievalModeHybrid  = "hybrid"
	RetrievalModeLexical = "lexical"
)

// Fragment is one retrieved index hit. A slice of fragments is always
// ordered by fused score descending; slice position is rank.
type Fragment struct {
	DocumentID   string            `json:"document_id"`
	Title        string            `json:"title,omitempty"`
	Text         string            `json:"text"`
	SourceURL    string            `json:"source_url,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
	LexicalScore float64           `json:"lexical_score,omitempty"`
	VectorScore  float64           `json:"vector_score,omitempty"`
	FusedScore   float64           `json:"fused_score"`
}

// Answer is the terminal artifact of one question: served to the caller
// and written to the cache. The wire name of Question is "query", matching
// the ask request field it echoes.
type Answer struct {
	Question      string   `json:"query"`
	Text          string   `json:"answer"`
	Sources       []string `json:"sources"`
	FragmentsUsed int      `json:"fragments_used"`
	RetrievalMode string   `json:"retrieval_mode"`
	Provider      string   `json:"provider_used"`
}
