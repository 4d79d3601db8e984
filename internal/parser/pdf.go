package parser

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/docrank/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if enabled.
type PDFParser struct {
	MaxPages          int
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(ctx context.Context, r io.Reader, filename string) ([]document.Page, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "docrank-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	return p.ParseFile(ctx, tmpPath)
}

// ParseFile extracts one page of text per PDF page. Pages that fail to
// decode are kept empty so numbering matches the document.
func (p *PDFParser) ParseFile(ctx context.Context, path string) ([]document.Page, error) {
	pages, err := extractPDFPages(ctx, path, p.MaxPages)
	if (err != nil || !HasText(pages)) && p.FallbackPdftotext {
		if fb, fbErr := extractPdftotext(ctx, path, p.MaxPages); fbErr == nil {
			return fb, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	return pages, nil
}

func extractPDFPages(ctx context.Context, path string, maxPages int) (pages []document.Page, err error) {
	// The reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	if maxPages > 0 && numPages > maxPages {
		numPages = maxPages
	}
	pages = make([]document.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, document.Page{Number: i, Text: pageText(reader.Page(i))})
	}
	return pages, nil
}

// pageText lays out a page's glyphs as lines. Glyph positions follow the
// text matrix, so lines placed with Td or T* inside one text object stay
// apart. A page whose content stream cannot be interpreted falls back to
// the library's plain text, then to empty.
func pageText(pg pdflib.Page) (text string) {
	if pg.V.IsNull() {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			text = plainText(pg)
		}
	}()
	if text = layoutLines(pg.Content().Text); strings.TrimSpace(text) == "" {
		text = plainText(pg)
	}
	return text
}

func plainText(pg pdflib.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	plain, err := pg.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return plain
}

// layoutLines joins glyphs in content order. A vertical move of more than half
// the font size starts a new line, a move of more than twice the font size
// leaves a blank line, and a horizontal gap wider than a fifth of the font
// size becomes a space.
func layoutLines(glyphs []pdflib.Text) string {
	var b strings.Builder
	for i, g := range glyphs {
		if i > 0 {
			prev := glyphs[i-1]
			size := max(prev.FontSize, 1)
			dy := math.Abs(g.Y - prev.Y)
			switch {
			case dy > 2*size:
				b.WriteString("\n\n")
			case dy > size/2:
				b.WriteByte('\n')
			case g.X-(prev.X+prev.W) > size/5 && g.S != " " && prev.S != " ":
				b.WriteByte(' ')
			}
		}
		b.WriteString(g.S)
	}
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	return b.String()
}

func extractPdftotext(ctx context.Context, path string, maxPages int) ([]document.Page, error) {
	args := []string{"-layout"}
	if maxPages > 0 {
		args = append(args, "-l", fmt.Sprint(maxPages))
	}
	args = append(args, path, "-")
	out, err := exec.CommandContext(ctx, "pdftotext", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitFormFeed(string(out), maxPages), nil
}
