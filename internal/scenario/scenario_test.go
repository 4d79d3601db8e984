package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleScenario = `{
  "document_collection": [{"file_name": "a.pdf"}, {"file_name": "b.pdf"}],
  "persona": {"role": "Travel Planner", "expertise": "group itineraries"},
  "job_to_be_done": {"task": "plan a 4-day trip", "focus": ["budget", "nightlife"]}
}`

func TestParse_Valid(t *testing.T) {
	s, err := Parse([]byte(sampleScenario))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(s.Documents))
	}
	if s.Persona.Role != "Travel Planner" {
		t.Errorf("expected role %q, got %q", "Travel Planner", s.Persona.Role)
	}
}

func TestParse_MissingPersonaOrJob(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed", `{"persona": `},
		{"no role", `{"persona": {"expertise": "x"}, "job_to_be_done": {"task": "t"}}`},
		{"no task", `{"persona": {"role": "r"}, "job_to_be_done": {"focus": ["f"]}}`},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.input))
		if !errors.Is(err, ErrInvalidScenario) {
			t.Errorf("%s: expected ErrInvalidScenario, got %v", tt.name, err)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrInvalidScenario) {
		t.Errorf("expected ErrInvalidScenario, got %v", err)
	}
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery(
		Persona{Role: "PhD Researcher", Expertise: "computational biology"},
		JobToBeDone{Task: "prepare a literature review", Focus: []string{"methods", "datasets"}},
	)
	want := "PhD Researcher with expertise in computational biology needs to prepare a literature review focusing on methods, datasets"
	if q != want {
		t.Errorf("expected %q, got %q", want, q)
	}
}

func TestDescriptors_ResolvesAgainstDir(t *testing.T) {
	s, err := Parse([]byte(sampleScenario))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	descs := s.Descriptors("/data/in")
	if len(descs) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descs))
	}
	if descs[1].Name != "b.pdf" || descs[1].Path != filepath.Join("/data/in", "b.pdf") {
		t.Errorf("unexpected descriptor: %+v", descs[1])
	}
}

func TestOutput_EmptyArraysNotNull(t *testing.T) {
	out := NewOutput(Persona{Role: "r"}, JobToBeDone{Task: "t"}, "2026-01-01T00:00:00Z")
	var buf bytes.Buffer
	if err := out.Encode(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{"extracted_sections", "subsection_analysis"} {
		if string(raw[key]) != "[]" {
			t.Errorf("expected %s to be [], got %s", key, raw[key])
		}
	}
	if !strings.Contains(string(raw["metadata"]), `"input_documents": []`) {
		t.Errorf("expected empty input_documents array, got %s", raw["metadata"])
	}
}

func TestOutput_WriteFileCreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	out := NewOutput(Persona{Role: "r"}, JobToBeDone{Task: "Q&A prep"}, "ts")
	if err := out.WriteFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "Q&A prep") {
		t.Errorf("expected unescaped ampersand in output, got %s", data)
	}
}
