// Package rank scores candidates against a query vector by cosine similarity
// and orders them deterministically.
package rank

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// SectionPreviewRunes bounds how much of a section body is embedded.
const SectionPreviewRunes = 500

// ErrDimensionMismatch is returned when two vectors differ in length.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Cosine returns the cosine similarity of a and b, accumulated in float64.
// A zero-norm vector scores 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Candidate pairs a payload with its embedding.
type Candidate[T any] struct {
	Payload T
	Vector  []float32
}

// Scored is a ranked candidate. Index is the candidate's position in the
// input slice.
type Scored[T any] struct {
	Payload T
	Score   float64
	Index   int
}

// Rank scores every candidate against query and returns them sorted by score
// descending. Equal scores keep input order.
func Rank[T any](query []float32, candidates []Candidate[T]) ([]Scored[T], error) {
	out := make([]Scored[T], len(candidates))
	for i, c := range candidates {
		s, err := Cosine(query, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		out[i] = Scored[T]{Payload: c.Payload, Score: s, Index: i}
	}
	SortByScore(out, nil)
	return out, nil
}

// SortByScore stable-sorts by score descending, then by Index ascending. If
// tie is non-nil it breaks ties that remain after Index.
func SortByScore[T any](items []Scored[T], tie func(a, b T) int) {
	slices.SortStableFunc(items, func(a, b Scored[T]) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		if a.Index != b.Index {
			return a.Index - b.Index
		}
		if tie != nil {
			return tie(a.Payload, b.Payload)
		}
		return 0
	})
}

// SectionEmbeddingText is the text embedded for a section: the title, a
// period, and at most SectionPreviewRunes runes of the body.
func SectionEmbeddingText(title, body string) string {
	return title + ". " + firstRunes(body, SectionPreviewRunes)
}

func firstRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
