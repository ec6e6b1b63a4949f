package tokenizer

import "testing"

func TestCountGrowsWithText(t *testing.T) {
	counter, err := New("cl100k_base")
	if err != nil {
		t.Skipf("encoding unavailable in this environment: %v", err)
	}

	if got := counter.Count(""); got != 0 {
		t.Fatalf("Count(\"\") = %d, want 0", got)
	}

	short := counter.Count("attention")
	long := counter.Count("attention is all you need for sequence transduction")
	if short <= 0 {
		t.Fatalf("Count(short) = %d, want > 0", short)
	}
	if long <= short {
		t.Fatalf("longer text should count more tokens: short=%d long=%d", short, long)
	}
}

func TestNewRejectsUnknownEncoding(t *testing.T) {
	if _, err := New("no-such-encoding"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}
