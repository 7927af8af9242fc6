package nodes

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateText(t *testing.T) {
	if got := truncateText("short", 10); got != "short" {
		t.Fatalf("short input must pass through, got %q", got)
	}

	got := truncateText(strings.Repeat("a", 20), 10)
	if got != strings.Repeat("a", 10)+"…" {
		t.Fatalf("unexpected truncation %q", got)
	}

	// Multi-byte runes must never be split mid-sequence.
	got = truncateText(strings.Repeat("世界", 20), 7)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation produced invalid UTF-8: %q", got)
	}
	if utf8.RuneCountInString(got) != 8 {
		t.Fatalf("expected 7 runes plus ellipsis, got %d in %q", utf8.RuneCountInString(got), got)
	}
}
