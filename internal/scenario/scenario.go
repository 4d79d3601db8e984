package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docrank/internal/document"
)

// ErrInvalidScenario is returned when the persona or job specification is
// missing or unreadable.
var ErrInvalidScenario = errors.New("invalid scenario")

// Persona describes the reader the ranking is done for.
type Persona struct {
	Role      string `json:"role"`
	Expertise string `json:"expertise"`
}

// JobToBeDone describes the objective of the persona.
type JobToBeDone struct {
	Task  string   `json:"task"`
	Focus []string `json:"focus"`
}

// DocumentRef is one entry of the input document collection.
type DocumentRef struct {
	FileName string `json:"file_name"`
}

// Scenario is the input of a single ranking run.
type Scenario struct {
	Documents []DocumentRef `json:"document_collection"`
	Persona   Persona       `json:"persona"`
	Job       JobToBeDone   `json:"job_to_be_done"`
}

// Parse decodes and validates a scenario JSON document.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidScenario, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a scenario file from disk.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidScenario, path, err)
	}
	return Parse(data)
}

// Validate checks that the persona and job are present.
func (s *Scenario) Validate() error {
	if strings.TrimSpace(s.Persona.Role) == "" {
		return fmt.Errorf("%w: persona.role is required", ErrInvalidScenario)
	}
	if strings.TrimSpace(s.Job.Task) == "" {
		return fmt.Errorf("%w: job_to_be_done.task is required", ErrInvalidScenario)
	}
	return nil
}

// Query synthesizes the relevance query for the persona and job.
func (s *Scenario) Query() string {
	return BuildQuery(s.Persona, s.Job)
}

// BuildQuery renders the fixed query template.
func BuildQuery(p Persona, j JobToBeDone) string {
	return fmt.Sprintf("%s with expertise in %s needs to %s focusing on %s",
		p.Role, p.Expertise, j.Task, strings.Join(j.Focus, ", "))
}

// Descriptors resolves every document of the collection against dir.
func (s *Scenario) Descriptors(dir string) []document.Descriptor {
	out := make([]document.Descriptor, 0, len(s.Documents))
	for _, d := range s.Documents {
		out = append(out, document.Descriptor{
			Name: d.FileName,
			Path: filepath.Join(dir, d.FileName),
		})
	}
	return out
}
