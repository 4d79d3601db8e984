package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docrank/internal/document"
)

// csvRowsPerPage groups data rows so each page stays a manageable size.
const csvRowsPerPage = 20

// CSVParser handles CSV files. Every group of rows becomes one page
// headed by a "Rows a-b:" line.
type CSVParser struct{}

func (p *CSVParser) Parse(ctx context.Context, r io.Reader, filename string) ([]document.Page, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// First row is headers.
	headers := records[0]
	dataRows := records[1:]

	var pages []document.Page
	for i := 0; i < len(dataRows); i += csvRowsPerPage {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(i+csvRowsPerPage, len(dataRows))

		var text strings.Builder
		fmt.Fprintf(&text, "Rows %d-%d:\n", i+2, end+1) // 1-indexed, skip header
		for _, row := range dataRows[i:end] {
			for j, cell := range row {
				if j < len(headers) {
					text.WriteString(headers[j] + ": " + cell)
				} else {
					text.WriteString(cell)
				}
				if j < len(row)-1 {
					text.WriteString(", ")
				}
			}
			text.WriteString("\n")
		}

		pages = append(pages, document.Page{Number: len(pages) + 1, Text: text.String()})
	}

	return pages, nil
}
