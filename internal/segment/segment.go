// Package segment splits extracted page text into titled sections using
// line-shape heuristics.
package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docrank/internal/document"
)

const (
	// MaxPages bounds how many pages of a document are segmented.
	MaxPages = 15
	// MinPageChars is the trimmed length below which a page is treated as blank.
	MinPageChars = 10
	// MaxHeaderChars is the length at which a line can no longer be a header.
	MaxHeaderChars = 80
	// MaxHeaderWords bounds the word count of a title-case header.
	MaxHeaderWords = 8

	introductionTitle = "Introduction"
)

// LineKind is the classification of a single line of page text.
type LineKind int

const (
	Body LineKind = iota
	Header
)

func (k LineKind) String() string {
	if k == Header {
		return "header"
	}
	return "body"
}

// Config controls segmentation bounds.
type Config struct {
	MaxPages int // Pages beyond this position are ignored.
}

// DefaultConfig returns the standard bounds.
func DefaultConfig() Config {
	return Config{MaxPages: MaxPages}
}

// Classify decides whether a line starts a new section.
func Classify(line string) LineKind {
	s := strings.TrimSpace(line)
	if s == "" || tooLongForHeader(s) {
		return Body
	}
	if isShortTitleCase(s) || endsWithColon(s) || isNumberedHeading(s) {
		return Header
	}
	return Body
}

func tooLongForHeader(s string) bool {
	return utf8.RuneCountInString(s) >= MaxHeaderChars
}

// isShortTitleCase matches short lines without a terminal period where at
// least one word is capitalized.
func isShortTitleCase(s string) bool {
	if strings.HasSuffix(s, ".") {
		return false
	}
	words := strings.Fields(s)
	if len(words) == 0 || len(words) > MaxHeaderWords {
		return false
	}
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func endsWithColon(s string) bool {
	return strings.HasSuffix(s, ":")
}

// isNumberedHeading matches "1.2 Overview" style lines: a leading digit and
// a period within the first five characters.
func isNumberedHeading(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	if !unicode.IsDigit(r) {
		return false
	}
	prefix := []rune(s)
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}
	return strings.ContainsRune(string(prefix), '.')
}

// Segment turns ordered pages into ordered sections. Sections with an empty
// body are never emitted.
func Segment(pages []document.Page, cfg Config) []document.Section {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = MaxPages
	}
	if len(pages) > cfg.MaxPages {
		pages = pages[:cfg.MaxPages]
	}

	var sections []document.Section
	current := document.Section{Title: introductionTitle, Page: 1}
	var body strings.Builder

	flush := func() {
		if strings.TrimSpace(body.String()) != "" {
			current.Text = body.String()
			sections = append(sections, current)
		}
		body.Reset()
	}

	for _, page := range pages {
		if utf8.RuneCountInString(strings.TrimSpace(page.Text)) < MinPageChars {
			continue
		}
		for _, line := range strings.Split(page.Text, "\n") {
			if Classify(line) == Header {
				flush()
				current = document.Section{Title: strings.TrimSpace(line), Page: page.Number}
				continue
			}
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()

	return sections
}
