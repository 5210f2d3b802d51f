// Package quiz holds the built-in question bank, embedded at build time.
package quiz

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
)

//go:embed questions.json
var questionsJSON []byte

// Question is one multiple-choice quiz question.
type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Correct  string   `json:"correct"`
}

// Bank is an immutable in-memory question bank keyed by department name.
type Bank struct {
	departments map[string][]Question
	names       []string
}

// Load parses the embedded question data into a Bank.
func Load() (*Bank, error) {
	var departments map[string][]Question
	if err := json.Unmarshal(questionsJSON, &departments); err != nil {
		return nil, fmt.Errorf("parsing embedded question bank: %w", err)
	}
	names := make([]string, 0, len(departments))
	for name := range departments {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Bank{departments: departments, names: names}, nil
}

// Departments returns every department name in sorted order.
func (b *Bank) Departments() []string {
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}

// Has reports whether the department exists.
func (b *Bank) Has(department string) bool {
	_, ok := b.departments[department]
	return ok
}

// Questions returns a shuffled copy of the department's questions, truncated
// to limit when limit > 0. The second return is false for unknown departments.
func (b *Bank) Questions(department string, limit int, rng *rand.Rand) ([]Question, bool) {
	src, ok := b.departments[department]
	if !ok {
		return nil, false
	}
	out := make([]Question, len(src))
	copy(out, src)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, true
}
