package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/docrank/internal/segment"
)

// buildPDF writes a single-page PDF whose page draws content with Helvetica.
func buildPDF(content string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

const tdLines = `BT
/F1 12 Tf
72 720 Td
(Packing Tips) Tj
0 -14 Td
(bring a warm jacket for the evenings on the coast) Tj
0 -14 Td
(Food Guide) Tj
0 -14 Td
(try the local seafood at the harbour market) Tj
ET`

func TestPDFParser_TdLinesStaySeparate(t *testing.T) {
	p := &PDFParser{}
	pages, err := p.Parse(context.Background(), bytes.NewReader(buildPDF(tdLines)), "trip.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}

	lines := strings.Split(strings.TrimSpace(pages[0].Text), "\n")
	want := []string{
		"Packing Tips",
		"bring a warm jacket for the evenings on the coast",
		"Food Guide",
		"try the local seafood at the harbour market",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d: %q", len(want), len(lines), pages[0].Text)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d: expected %q, got %q", i, w, lines[i])
		}
	}

	sections := segment.Segment(pages, segment.DefaultConfig())
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	if sections[0].Title != "Packing Tips" || sections[1].Title != "Food Guide" {
		t.Errorf("expected titles Packing Tips, Food Guide, got %q, %q", sections[0].Title, sections[1].Title)
	}
}

func TestLayoutLines(t *testing.T) {
	glyphs := func(s string, x, y, w float64) []pdflib.Text {
		out := make([]pdflib.Text, 0, len(s))
		for i, r := range s {
			out = append(out, pdflib.Text{FontSize: 10, X: x + float64(i)*w, Y: y, W: w, S: string(r)})
		}
		return out
	}

	var in []pdflib.Text
	in = append(in, glyphs("Title", 72, 700, 5)...)
	in = append(in, glyphs("left", 72, 688, 5)...)
	in = append(in, glyphs("right", 200, 688, 5)...)
	in = append(in, glyphs("after gap", 72, 640, 5)...)

	got := layoutLines(in)
	want := "Title\nleft right\n\nafter gap\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	if got := layoutLines(nil); got != "" {
		t.Errorf("expected empty text, got %q", got)
	}
}
