// Package parser extracts per-page plain text from supported document formats.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docrank/internal/document"
)

// ErrUnsupported is returned for file extensions no parser handles.
var ErrUnsupported = errors.New("unsupported file extension")

// Parser converts raw document bytes into ordered pages.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, filename string) ([]document.Page, error)
}

// FileParser is implemented by parsers that can read a path directly
// without buffering the content first.
type FileParser interface {
	ParseFile(ctx context.Context, path string) ([]document.Page, error)
}

// Options tune extraction.
type Options struct {
	MaxPages          int  // Stop after this many pages; 0 reads all.
	FallbackPdftotext bool // Retry PDFs with pdftotext when the Go reader yields nothing.
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{MaxPages: opts.MaxPages}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{MaxPages: opts.MaxPages, FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Extractor reads documents from disk.
type Extractor struct {
	Options Options
}

// Extract returns the pages of the document at path.
func (e *Extractor) Extract(ctx context.Context, path string) ([]document.Page, error) {
	p, err := ForFile(path, e.Options)
	if err != nil {
		return nil, err
	}
	if fp, ok := p.(FileParser); ok {
		return fp.ParseFile(ctx, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return p.Parse(ctx, f, filepath.Base(path))
}

// HasText reports whether any page carries non-whitespace text.
func HasText(pages []document.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

// blocks accumulates headings and paragraphs for formats without pages.
// Headings land on their own line so the segmenter can see them.
type blocks struct {
	parts []string
}

func (b *blocks) heading(title string) {
	title = strings.Join(strings.Fields(title), " ")
	if title != "" {
		b.parts = append(b.parts, title)
	}
}

func (b *blocks) paragraph(text string) {
	text = strings.TrimSpace(text)
	if text != "" {
		b.parts = append(b.parts, text)
	}
}

// pages returns the content as a single page, or nothing when empty.
func (b *blocks) pages() []document.Page {
	if len(b.parts) == 0 {
		return nil
	}
	return []document.Page{{Number: 1, Text: strings.Join(b.parts, "\n\n")}}
}

// splitFormFeed splits text into pages on form feed characters.
func splitFormFeed(text string, maxPages int) []document.Page {
	raw := strings.Split(text, "\f")
	// A trailing form feed does not start a new page.
	if len(raw) > 1 && strings.TrimSpace(raw[len(raw)-1]) == "" {
		raw = raw[:len(raw)-1]
	}
	if maxPages > 0 && len(raw) > maxPages {
		raw = raw[:maxPages]
	}
	pages := make([]document.Page, 0, len(raw))
	for i, t := range raw {
		pages = append(pages, document.Page{Number: i + 1, Text: t})
	}
	return pages
}
