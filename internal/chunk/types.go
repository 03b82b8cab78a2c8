// Package chunk splits Markdown documentation and source code into the
// retrievable units the rest of the system stores and searches. Chunk
// identity is deterministic: the same (file_path, line_start) always
// produces the same id, which is what makes re-indexing idempotent.
package chunk

import "context"

// Content types carried in the payload.
const (
	ContentTypeText  = "text"
	ContentTypeList  = "list"
	ContentTypeTable = "table"
	ContentTypeCode  = "code"
)

// Code chunk kinds.
const (
	CodeTypeFunction = "function"
	CodeTypeMethod   = "method"
	CodeTypeClass    = "class"
	CodeTypeModule   = "module"
)

// Chunk is the unit of storage: one embeddable span of one file.
type Chunk struct {
	// ID is derived from (file_path, line_start); see Identity.
	ID uint64

	// Content is the exact text that gets embedded.
	Content string

	// Vector is filled in by the embedder before upsert.
	Vector []float32

	Payload Payload
}

// Payload is the flat metadata stored alongside each vector. Field
// names match the stored payload keys.
type Payload struct {
	FilePath    string   `json:"file_path"`
	LineStart   int      `json:"line_start"`
	LineEnd     int      `json:"line_end"`
	ContentType string   `json:"content_type"`
	Language    string   `json:"language"`
	Section     string   `json:"section,omitempty"`
	DocType     string   `json:"doc_type,omitempty"`
	CodeType    string   `json:"code_type,omitempty"`
	Name        string   `json:"name,omitempty"`
	ClassName   string   `json:"class_name,omitempty"`
	Imports     []string `json:"imports,omitempty"`
	ListLength  int      `json:"list_length,omitempty"`
	IsComplete  bool     `json:"is_complete,omitempty"`
	IsDeleted   bool     `json:"is_deleted"`
	ContentHash string   `json:"content_hash"`
}

// ToMap flattens the payload for stores that persist key-value maps.
// Zero-valued optional fields are omitted; is_deleted is always present
// because every search path filters on it.
func (p Payload) ToMap() map[string]any {
	m := map[string]any{
		"file_path":    p.FilePath,
		"line_start":   int64(p.LineStart),
		"line_end":     int64(p.LineEnd),
		"content_type": p.ContentType,
		"language":     p.Language,
		"is_deleted":   p.IsDeleted,
		"content_hash": p.ContentHash,
	}
	if p.Section != "" {
		m["section"] = p.Section
	}
	if p.DocType != "" {
		m["doc_type"] = p.DocType
	}
	if p.CodeType != "" {
		m["code_type"] = p.CodeType
	}
	if p.Name != "" {
		m["name"] = p.Name
	}
	if p.ClassName != "" {
		m["class_name"] = p.ClassName
	}
	if len(p.Imports) > 0 {
		imports := make([]any, len(p.Imports))
		for i, imp := range p.Imports {
			imports[i] = imp
		}
		m["imports"] = imports
	}
	if p.ListLength > 0 {
		m["list_length"] = int64(p.ListLength)
		m["is_complete"] = p.IsComplete
	}
	return m
}

// PayloadFromMap is the inverse of ToMap. Unknown keys are ignored;
// missing keys leave zero values.
func PayloadFromMap(m map[string]any) Payload {
	p := Payload{
		FilePath:    asString(m["file_path"]),
		LineStart:   asInt(m["line_start"]),
		LineEnd:     asInt(m["line_end"]),
		ContentType: asString(m["content_type"]),
		Language:    asString(m["language"]),
		Section:     asString(m["section"]),
		DocType:     asString(m["doc_type"]),
		CodeType:    asString(m["code_type"]),
		Name:        asString(m["name"]),
		ClassName:   asString(m["class_name"]),
		ListLength:  asInt(m["list_length"]),
		ContentHash: asString(m["content_hash"]),
	}
	if v, ok := m["is_deleted"].(bool); ok {
		p.IsDeleted = v
	}
	if v, ok := m["is_complete"].(bool); ok {
		p.IsComplete = v
	}
	if raw, ok := m["imports"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				p.Imports = append(p.Imports, s)
			}
		}
	} else if raw, ok := m["imports"].([]string); ok {
		p.Imports = append(p.Imports, raw...)
	}
	return p
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// FileInput is one file handed to a chunker. Path is normalized
// (forward slashes, project-root-relative) before it gets here.
type FileInput struct {
	Path     string
	Content  []byte
	Language string

	// DocType is the payload doc_type for documentation files, resolved
	// by the caller from the path mapping.
	DocType string
}

// Chunker splits one file into ordered chunks. An empty file yields
// zero chunks and no error.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
}

// seal assigns the identity fields derived from path, position, and
// content. Every chunker calls it last.
func seal(c *Chunk) *Chunk {
	c.ID = ID(c.Payload.FilePath, c.Payload.LineStart)
	c.Payload.ContentHash = ContentHash(c.Content)
	return c
}
