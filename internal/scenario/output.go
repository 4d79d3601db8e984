package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Output is the result of a ranking run, shaped for JSON serialization.
type Output struct {
	Metadata           Metadata             `json:"metadata"`
	ExtractedSections  []ExtractedSection   `json:"extracted_sections"`
	SubsectionAnalysis []SubsectionAnalysis `json:"subsection_analysis"`
}

// Metadata records what a run was computed from.
type Metadata struct {
	InputDocuments      []string    `json:"input_documents"`
	Persona             Persona     `json:"persona"`
	JobToBeDone         JobToBeDone `json:"job_to_be_done"`
	ProcessingTimestamp string      `json:"processing_timestamp"`
}

// ExtractedSection is one of the globally top-ranked sections.
type ExtractedSection struct {
	Document       string `json:"document"`
	PageNumber     int    `json:"page_number"`
	SectionTitle   string `json:"section_title"`
	ImportanceRank int    `json:"importance_rank"`
}

// SubsectionAnalysis is a paragraph-level highlight inside a top section.
type SubsectionAnalysis struct {
	Document     string `json:"document"`
	SectionTitle string `json:"section_title"`
	RefinedText  string `json:"refined_text"`
	PageNumber   int    `json:"page_number"`
}

// NewOutput returns an Output with non-nil slices.
func NewOutput(p Persona, j JobToBeDone, timestamp string) *Output {
	return &Output{
		Metadata: Metadata{
			InputDocuments:      []string{},
			Persona:             p,
			JobToBeDone:         j,
			ProcessingTimestamp: timestamp,
		},
		ExtractedSections:  []ExtractedSection{},
		SubsectionAnalysis: []SubsectionAnalysis{},
	}
}

// Encode writes the output as indented JSON without HTML escaping.
func (o *Output) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(o); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// WriteFile writes the output JSON to path, creating parent directories.
func (o *Output) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	var buf bytes.Buffer
	if err := o.Encode(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
