package parser

import (
	"context"
	"fmt"
	"io"

	"github.com/dgallion1/docrank/internal/document"
)

// maxTextBytes bounds how much of a plain-text file is read.
const maxTextBytes = 32 << 20

// TextParser handles plain text files. Form feeds separate pages.
type TextParser struct {
	MaxPages int
}

func (p *TextParser) Parse(ctx context.Context, r io.Reader, filename string) ([]document.Page, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxTextBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return splitFormFeed(string(data), p.MaxPages), nil
}
