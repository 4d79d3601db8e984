// Package chunker splits section text into paragraph candidates for
// fine-grained ranking.
package chunker

import (
	"regexp"
	"strings"
)

// Config controls paragraph selection.
type Config struct {
	MinWords      int // Paragraphs need strictly more words than this.
	MaxParagraphs int // Only the first MaxParagraphs qualifying paragraphs are kept.
}

// DefaultConfig returns the defaults used by subsection analysis.
func DefaultConfig() Config {
	return Config{
		MinWords:      10,
		MaxParagraphs: 10,
	}
}

// paragraphBreak matches a blank line, possibly containing whitespace.
var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Paragraphs splits text on blank lines, trims each piece, and returns the
// first cfg.MaxParagraphs pieces with more than cfg.MinWords words, in
// document order.
func Paragraphs(text string, cfg Config) []string {
	if cfg.MinWords < 0 {
		cfg.MinWords = 0
	}
	if cfg.MaxParagraphs <= 0 {
		cfg.MaxParagraphs = 10
	}

	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if WordCount(p) <= cfg.MinWords {
			continue
		}
		out = append(out, p)
		if len(out) == cfg.MaxParagraphs {
			break
		}
	}
	return out
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
