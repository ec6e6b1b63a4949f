// Package tokenizer measures prompt text with tiktoken BPE encodings so the
// context budget counts real tokens instead of bytes.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

type Counter struct {
	enc *tiktoken.Tiktoken
}

// New loads the named encoding, e.g. "cl100k_base". Loading can pull the
// BPE ranks on first use, so callers should treat failure as non-fatal and
// fall back to a heuristic counter.
func New(encoding string) (*Counter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encoding, err)
	}
	return &Counter{enc: enc}, nil
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}
