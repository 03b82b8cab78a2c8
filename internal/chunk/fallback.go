package chunk

import (
	"context"
	"regexp"
	"strings"
)

// FallbackExtractor chunks source files in languages without a
// tree-sitter grammar. It is header-driven: every top-level def, class,
// func, or function declaration starts a chunk that runs to the next
// top-level header. Coarser than the AST path, but indexing never
// fails silently on an uncovered language.
type FallbackExtractor struct{}

var (
	fallbackHeaderPattern = regexp.MustCompile(`^(?:export\s+)?(?:async\s+)?(def|class|func|function)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	fallbackImportPattern = regexp.MustCompile(`^(?:import\s|from\s+\S+\s+import\s|(?:const|let|var)\s+.*=\s*require\()`)
)

// NewFallbackExtractor creates the regex extractor.
func NewFallbackExtractor() *FallbackExtractor {
	return &FallbackExtractor{}
}

var _ Chunker = (*FallbackExtractor)(nil)

// Chunk splits a file by top-level declaration headers. Files with no
// recognizable headers yield a single module chunk.
func (e *FallbackExtractor) Chunk(_ context.Context, file *FileInput) ([]*Chunk, error) {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	lines := strings.Split(content, "\n")

	var imports []string
	for _, line := range lines {
		if fallbackImportPattern.MatchString(line) {
			imports = append(imports, line)
		}
	}

	// Header line indexes (0-based), extended backwards over contiguous
	// comment lines so doc comments stay with their symbol.
	type header struct {
		line     int // start including leading comments
		declLine int
		kind     string
		name     string
	}
	var headers []header
	for i, line := range lines {
		m := fallbackHeaderPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		start := i
		for start > 0 {
			prev := strings.TrimSpace(lines[start-1])
			if prev == "" || !(strings.HasPrefix(prev, "#") || strings.HasPrefix(prev, "//") || strings.HasPrefix(prev, "@") || strings.HasPrefix(prev, "*") || strings.HasPrefix(prev, "/*")) {
				break
			}
			start--
		}
		headers = append(headers, header{line: start, declLine: i, kind: m[1], name: m[2]})
	}

	if len(headers) == 0 {
		p := Payload{
			FilePath:    file.Path,
			LineStart:   1,
			LineEnd:     len(lines),
			ContentType: ContentTypeCode,
			Language:    file.Language,
			CodeType:    CodeTypeModule,
			Imports:     imports,
		}
		return []*Chunk{seal(&Chunk{Content: strings.TrimRight(content, "\n"), Payload: p})}, nil
	}

	var chunks []*Chunk
	for idx, h := range headers {
		end := len(lines)
		if idx+1 < len(headers) {
			end = headers[idx+1].line
		}
		for end > h.declLine+1 && strings.TrimSpace(lines[end-1]) == "" {
			end--
		}

		codeType := CodeTypeFunction
		if h.kind == "class" {
			codeType = CodeTypeClass
		}

		body := strings.Join(lines[h.line:end], "\n")
		p := Payload{
			FilePath:    file.Path,
			LineStart:   h.line + 1,
			LineEnd:     end,
			ContentType: ContentTypeCode,
			Language:    file.Language,
			CodeType:    codeType,
			Name:        h.name,
			Imports:     imports,
		}
		content := body
		if len(imports) > 0 {
			content = strings.Join(imports, "\n") + "\n\n" + body
		}
		chunks = append(chunks, seal(&Chunk{Content: content, Payload: p}))
	}
	return chunks, nil
}
