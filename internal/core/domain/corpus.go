package domain

import (
	"fmt"
	"strings"
)

// Corpus names shipped in the default configuration. The routable set is
// whatever the corpora file declares; these two are the built-ins.
const (
	CorpusArxiv     = "arxiv"
	CorpusFinancial = "financial"
)

// CitationTag renders the bracketed source tag a fragment carries inside a
// prompt context block, e.g. "[2. arXiv:2301.00234]" or
// "[1. AAPL - Apple Inc 10-K filed 2023-11-03]". Position is 1-based.
func (f Fragment) CitationTag(position int, corpus string) string {
	switch corpus {
	case CorpusFinancial:
		ticker := f.Fields["ticker"]
		filing := f.Fields["filing_type"]
		if ticker != "" && filing != "" {
			parts := []string{ticker, "-"}
			if company := f.Fields["company_name"]; company != "" {
				parts = append(parts, company)
			}
			parts = append(parts, filing)
			if filed := f.Fields["filed_at"]; filed != "" {
				parts = append(parts, "filed", filed)
			}
			return fmt.Sprintf("[%d. %s]", position, strings.Join(parts, " "))
		}
	case CorpusArxiv:
		if id := f.Fields["paper_id"]; id != "" {
			return fmt.Sprintf("[%d. arXiv:%s]", position, id)
		}
	}
	return fmt.Sprintf("[%d. %s]", position, f.DocumentID)
}
