// Package llm holds the generation provider adapters and the prompt
// template they share.
package llm

import "fmt"

// BuildAnswerPrompt assembles the single-turn prompt every provider tier
// sends. The context block already carries bracketed citation tags, so the
// instruction only has to point the model at them.
func BuildAnswerPrompt(question, contextBlock string) string {
	if contextBlock == "" {
		return fmt.Sprintf(`Answer the user question. No supporting excerpts were retrieved; if you cannot answer without them, say so directly.

### Question:
%s

### Answer:
`, question)
	}

	return fmt.Sprintf(`Answer the user question strictly from the excerpts below. If the excerpts are insufficient, say so directly. Cite excerpts by their bracketed tags.

### Context:
%s### Question:
%s

### Answer:
`, contextBlock, question)
}
