// Package search implements the query side of the server: intent
// classification, hybrid retrieval over the vector store and the BM25
// sidecar, section-aware expansion, reranking, and answer synthesis.
package search

import (
	"fmt"

	"github.com/Aman-CERP/ragmcp/internal/errors"
)

// Intent is the classified purpose of a query. It selects the retrieval
// hints and the synthesis strategy.
type Intent string

const (
	// IntentEnumeration asks for a complete list ("list all flows").
	IntentEnumeration Intent = "enumeration"

	// IntentExplanation asks how or why something works. Also the
	// default when nothing else matches.
	IntentExplanation Intent = "explanation"

	// IntentCodeSearch asks for source code by name or behavior.
	IntentCodeSearch Intent = "code_search"

	// IntentComparison asks about two things at once.
	IntentComparison Intent = "comparison"

	// IntentFactual asks for a single concrete value.
	IntentFactual Intent = "factual"
)

// Hints carries the retrieval knobs an intent implies.
type Hints struct {
	// Expand enables section-aware expansion of the candidate pool.
	Expand bool

	// TopK overrides search_top_k when positive.
	TopK int

	// ContentType restricts the vector filter ("code" for code search).
	ContentType string

	// Language restricts results to one programming language. Only set
	// by callers, never by the classifier.
	Language string

	// MergeContiguous asks the synthesizer to merge adjacent chunks.
	MergeContiguous bool
}

// Classification is the classifier output for one query.
type Classification struct {
	Intent     Intent
	Confidence float64
	Hints      Hints

	// Operands holds the two comparison subqueries when Intent is
	// comparison and extraction succeeded; empty otherwise.
	Operands []string
}

// Weights splits the hybrid score between the two legs. They must sum
// to 1.0 within a small tolerance.
type Weights struct {
	Vector float64
	BM25   float64
}

// DefaultWeights returns the default 0.7 vector / 0.3 BM25 split.
func DefaultWeights() Weights {
	return Weights{Vector: 0.7, BM25: 0.3}
}

// Validate rejects weight pairs that do not sum to 1.0 ± 0.01.
func (w Weights) Validate() error {
	sum := w.Vector + w.BM25
	if sum < 0.99 || sum > 1.01 {
		return errors.Validation("hybrid weights must sum to 1.0, got %.2f", sum)
	}
	if w.Vector < 0 || w.BM25 < 0 {
		return errors.Validation("hybrid weights must be non-negative")
	}
	return nil
}

// Candidate is one retrieved chunk moving through the pipeline. Score
// is the combined hybrid score until reranking replaces it.
type Candidate struct {
	ID        uint64
	Score     float64
	VecScore  float64
	BM25Score float64
	Payload   map[string]any

	// Source is the collection provenance: "cloud" or "local".
	Source string

	// Expanded marks chunks pulled in by section expansion rather than
	// retrieved directly.
	Expanded bool
}

// FilePath returns the chunk's normalized file path.
func (c *Candidate) FilePath() string { return payloadString(c.Payload, "file_path") }

// Section returns the chunk's section heading, empty for code.
func (c *Candidate) Section() string { return payloadString(c.Payload, "section") }

// Content returns the chunk text.
func (c *Candidate) Content() string { return payloadString(c.Payload, "content") }

// Language returns the chunk's language tag.
func (c *Candidate) Language() string { return payloadString(c.Payload, "language") }

// LineStart returns the 1-based first line of the chunk.
func (c *Candidate) LineStart() int { return payloadInt(c.Payload, "line_start") }

// LineEnd returns the 1-based last line of the chunk.
func (c *Candidate) LineEnd() int { return payloadInt(c.Payload, "line_end") }

// Locator returns "Class.name", "name", or "" from the code payload.
func (c *Candidate) Locator() string {
	name := payloadString(c.Payload, "name")
	class := payloadString(c.Payload, "class_name")
	switch {
	case class != "" && name != "":
		return class + "." + name
	case name != "":
		return name
	default:
		return class
	}
}

// Citation points a rendered answer back at a chunk.
type Citation struct {
	FilePath  string `json:"file_path"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	Section   string `json:"section,omitempty"`
}

// String renders the citation in its canonical "path (line N)" form.
func (c Citation) String() string {
	return fmt.Sprintf("%s (line %d)", c.FilePath, c.LineStart)
}

// Answer is a synthesized response with its supporting citations in
// first-reference order.
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

func payloadString(p map[string]any, key string) string {
	if p == nil {
		return ""
	}
	s, _ := p[key].(string)
	return s
}

// payloadInt tolerates the numeric types payloads round-trip through:
// int64 from Qdrant, float64 from JSON.
func payloadInt(p map[string]any, key string) int {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func citationFor(c *Candidate) Citation {
	return Citation{
		FilePath:  c.FilePath(),
		LineStart: c.LineStart(),
		LineEnd:   c.LineEnd(),
		Section:   c.Section(),
	}
}
