package chunker

import (
	"fmt"
	"strings"
	"testing"
)

func words(n int, w string) string {
	return strings.TrimSpace(strings.Repeat(w+" ", n))
}

func TestParagraphs_SplitsOnBlankLines(t *testing.T) {
	text := words(12, "alpha") + "\n\n" + words(12, "beta") + "\n \t\n" + words(12, "gamma")
	got := Paragraphs(text, DefaultConfig())

	if len(got) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d", len(got))
	}
	for i, prefix := range []string{"alpha", "beta", "gamma"} {
		if !strings.HasPrefix(got[i], prefix) {
			t.Errorf("paragraph %d: expected prefix %q, got %q", i, prefix, got[i])
		}
	}
}

func TestParagraphs_SingleNewlineDoesNotSplit(t *testing.T) {
	text := words(6, "one") + "\n" + words(6, "two")
	got := Paragraphs(text, DefaultConfig())
	if len(got) != 1 {
		t.Fatalf("expected 1 paragraph, got %d", len(got))
	}
}

func TestParagraphs_WordThreshold(t *testing.T) {
	tests := []struct {
		name  string
		words int
		keep  bool
	}{
		{"ten words dropped", 10, false},
		{"eleven words kept", 11, true},
		{"empty dropped", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Paragraphs(words(tt.words, "w"), DefaultConfig())
			if (len(got) == 1) != tt.keep {
				t.Errorf("expected keep=%v, got %d paragraphs", tt.keep, len(got))
			}
		})
	}
}

func TestParagraphs_KeepsFirstTen(t *testing.T) {
	var parts []string
	for i := range 14 {
		parts = append(parts, fmt.Sprintf("p%d %s", i, words(11, "x")))
	}
	parts = append(parts[:2], append([]string{"too short"}, parts[2:]...)...)

	got := Paragraphs(strings.Join(parts, "\n\n"), DefaultConfig())
	if len(got) != 10 {
		t.Fatalf("expected 10 paragraphs, got %d", len(got))
	}
	if !strings.HasPrefix(got[0], "p0 ") || !strings.HasPrefix(got[9], "p9 ") {
		t.Errorf("expected p0..p9 in order, got first %q last %q", got[0][:3], got[9][:3])
	}
}

func TestParagraphs_CustomConfig(t *testing.T) {
	text := words(3, "a") + "\n\n" + words(3, "b") + "\n\n" + words(3, "c")
	got := Paragraphs(text, Config{MinWords: 2, MaxParagraphs: 2})
	if len(got) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(got))
	}
}

func TestWordCount(t *testing.T) {
	if n := WordCount("  one\ttwo\nthree  "); n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
	if n := WordCount(""); n != 0 {
		t.Errorf("expected 0, got %d", n)
	}
}
