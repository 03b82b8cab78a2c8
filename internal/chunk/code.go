package chunk

import (
	"bytes"
	"context"
	"strings"

	"github.com/Aman-CERP/ragmcp/internal/errors"
)

// CodeChunker splits source files symbol by symbol using tree-sitter.
// Every function and method becomes one chunk carrying the file's
// imports and, for methods, the enclosing class declaration line, so a
// chunk embeds with enough context to stand alone. Languages without a
// grammar route to the regex fallback extractor instead.
type CodeChunker struct {
	parser   *Parser
	registry *LanguageRegistry
	fallback *FallbackExtractor
}

// NewCodeChunker creates a code chunker over the default language
// registry (go, typescript, tsx, javascript, jsx, python).
func NewCodeChunker() *CodeChunker {
	registry := DefaultRegistry()
	return &CodeChunker{
		parser:   NewParserWithRegistry(registry),
		registry: registry,
		fallback: NewFallbackExtractor(),
	}
}

var _ Chunker = (*CodeChunker)(nil)

// Close releases the underlying parser.
func (c *CodeChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// Chunk splits one source file into symbol chunks in source order.
// A grammar parse failure returns PARSE_FAILED so the caller can skip
// the file and continue; it never takes the regex path for a file the
// AST path already covers.
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if len(bytes.TrimSpace(file.Content)) == 0 {
		return nil, nil
	}

	if _, supported := c.registry.GetByName(file.Language); !supported {
		return c.fallback.Chunk(ctx, file)
	}

	tree, err := c.parser.Parse(ctx, file.Content, file.Language)
	if err != nil {
		return nil, errors.ParseFailed(file.Path, err)
	}

	imports := extractImports(tree, file.Language)

	var chunks []*Chunk
	for _, node := range topLevelNodes(tree, file.Language) {
		chunks = append(chunks, c.chunksForNode(node, tree, file, imports)...)
	}
	return chunks, nil
}

// topLevelNodes returns the root's declaration nodes in source order,
// unwrapping TS/JS export statements.
func topLevelNodes(tree *Tree, language string) []*Node {
	nodes := make([]*Node, 0, len(tree.Root.Children))
	for _, n := range tree.Root.Children {
		if n.Type == "export_statement" {
			for _, child := range n.Children {
				if strings.HasSuffix(child.Type, "_declaration") || child.Type == "function_definition" || child.Type == "class_definition" {
					nodes = append(nodes, child)
				}
			}
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes
}

func (c *CodeChunker) chunksForNode(n *Node, tree *Tree, file *FileInput, imports []string) []*Chunk {
	switch file.Language {
	case "go":
		switch n.Type {
		case "function_declaration":
			return c.symbolChunk(n, tree, file, imports, CodeTypeFunction, goFunctionName(n, tree.Source), "")
		case "method_declaration":
			recv := goReceiverType(n, tree.Source)
			return c.symbolChunk(n, tree, file, imports, CodeTypeMethod, goMethodName(n, tree.Source), recv)
		case "type_declaration":
			return c.symbolChunk(n, tree, file, imports, CodeTypeClass, goTypeName(n, tree.Source), "")
		}
	case "python":
		switch n.Type {
		case "function_definition":
			return c.symbolChunk(n, tree, file, imports, CodeTypeFunction, namedChildContent(n, tree.Source, "identifier"), "")
		case "class_definition":
			return c.classChunks(n, tree, file, imports, "function_definition", "block")
		}
	case "typescript", "tsx", "javascript", "jsx":
		switch n.Type {
		case "function_declaration":
			return c.symbolChunk(n, tree, file, imports, CodeTypeFunction, namedChildContent(n, tree.Source, "identifier"), "")
		case "class_declaration":
			return c.classChunks(n, tree, file, imports, "method_definition", "class_body")
		case "lexical_declaration", "variable_declaration":
			if name := jsFunctionVariableName(n, tree.Source); name != "" {
				return c.symbolChunk(n, tree, file, imports, CodeTypeFunction, name, "")
			}
		}
	}
	return nil
}

// symbolChunk emits one chunk for a standalone symbol. classLine, when
// non-empty, is reproduced between the imports and the symbol source.
func (c *CodeChunker) symbolChunk(n *Node, tree *Tree, file *FileInput, imports []string, codeType, name, className string) []*Chunk {
	if name == "" {
		return nil
	}
	body, startLine := sourceWithLeadingComments(n, tree.Source, file.Language)

	p := Payload{
		FilePath:    file.Path,
		LineStart:   startLine,
		LineEnd:     int(n.EndPoint.Row) + 1,
		ContentType: ContentTypeCode,
		Language:    file.Language,
		CodeType:    codeType,
		Name:        name,
		ClassName:   className,
		Imports:     imports,
	}
	content := composeCode(imports, "", body)
	return []*Chunk{seal(&Chunk{Content: content, Payload: p})}
}

// classChunks handles a class declaration: a class with no methods is
// one class chunk; otherwise one chunk per method plus a class summary
// chunk when the body declares non-method members.
func (c *CodeChunker) classChunks(classNode *Node, tree *Tree, file *FileInput, imports []string, methodType, bodyType string) []*Chunk {
	className := classNodeName(classNode, tree.Source)
	if className == "" {
		return nil
	}

	body := classNode.FindChildByType(bodyType)
	var methods, members []*Node
	if body != nil {
		for _, child := range body.Children {
			switch {
			case child.Type == methodType:
				methods = append(methods, child)
			case child.Type == "decorated_definition":
				// Python decorated methods wrap the definition.
				if def := child.FindChildByType("function_definition"); def != nil && methodType == "function_definition" {
					methods = append(methods, child)
				}
			case isClassMember(child.Type):
				members = append(members, child)
			}
		}
	}

	if len(methods) == 0 {
		return c.symbolChunk(classNode, tree, file, imports, CodeTypeClass, className, "")
	}

	classLine := declarationLine(classNode, tree.Source)
	var chunks []*Chunk

	if len(members) > 0 {
		lastMember := members[len(members)-1]
		summary := classLine
		for _, m := range members {
			summary += "\n" + indentLines(m.GetContent(tree.Source), "    ")
		}
		p := Payload{
			FilePath:    file.Path,
			LineStart:   int(classNode.StartPoint.Row) + 1,
			LineEnd:     int(lastMember.EndPoint.Row) + 1,
			ContentType: ContentTypeCode,
			Language:    file.Language,
			CodeType:    CodeTypeClass,
			Name:        className,
			Imports:     imports,
		}
		content := composeCode(imports, "", summary)
		chunks = append(chunks, seal(&Chunk{Content: content, Payload: p}))
	}

	for _, m := range methods {
		target := m
		if m.Type == "decorated_definition" {
			if def := m.FindChildByType("function_definition"); def != nil {
				target = def
			}
		}
		name := namedChildContent(target, tree.Source, "identifier")
		if name == "" {
			name = namedChildContent(target, tree.Source, "property_identifier")
		}
		if name == "" {
			continue
		}
		methodBody, startLine := sourceWithLeadingComments(m, tree.Source, file.Language)

		p := Payload{
			FilePath:    file.Path,
			LineStart:   startLine,
			LineEnd:     int(m.EndPoint.Row) + 1,
			ContentType: ContentTypeCode,
			Language:    file.Language,
			CodeType:    CodeTypeMethod,
			Name:        name,
			ClassName:   className,
			Imports:     imports,
		}
		content := composeCode(imports, classLine, methodBody)
		chunks = append(chunks, seal(&Chunk{Content: content, Payload: p}))
	}
	return chunks
}

// isClassMember reports whether a class body node declares state worth
// keeping in the class summary chunk.
func isClassMember(nodeType string) bool {
	switch nodeType {
	case "public_field_definition", "field_definition", "property_declaration", "expression_statement":
		return true
	}
	return false
}

// composeCode builds chunk content: imports, optional class line, then
// the symbol source, separated by blank lines.
func composeCode(imports []string, classLine, body string) string {
	var parts []string
	if len(imports) > 0 {
		parts = append(parts, strings.Join(imports, "\n"))
	}
	if classLine != "" {
		parts = append(parts, classLine)
	}
	parts = append(parts, body)
	return strings.Join(parts, "\n\n")
}

// sourceWithLeadingComments returns the node source extended backwards
// over contiguous comment and decorator lines, plus the resulting
// 1-based start line.
func sourceWithLeadingComments(n *Node, source []byte, language string) (string, int) {
	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}
	startLine := int(n.StartPoint.Row) + 1

	for lineStart > 1 {
		prevEnd := lineStart - 1
		prevStart := prevEnd
		for prevStart > 0 && source[prevStart-1] != '\n' {
			prevStart--
		}
		prev := strings.TrimSpace(string(source[prevStart:prevEnd]))
		if !isLeadingCommentLine(prev, language) {
			break
		}
		lineStart = prevStart
		startLine--
	}

	return strings.TrimRight(string(source[lineStart:n.EndByte]), "\n"), startLine
}

func isLeadingCommentLine(line, language string) bool {
	if line == "" {
		return false
	}
	switch language {
	case "python":
		return strings.HasPrefix(line, "#") || strings.HasPrefix(line, "@")
	default:
		return strings.HasPrefix(line, "//") || strings.HasPrefix(line, "@")
	}
}

// declarationLine is the first line of a declaration, trimmed of its
// body opener.
func declarationLine(n *Node, source []byte) string {
	content := n.GetContent(source)
	line := content
	if idx := strings.IndexByte(content, '\n'); idx != -1 {
		line = content[:idx]
	}
	return strings.TrimRight(strings.TrimSpace(line), " {")
}

func indentLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = prefix + strings.TrimSpace(line)
		}
	}
	return strings.Join(lines, "\n")
}

// extractImports collects the file's import statements verbatim, in
// source order.
func extractImports(tree *Tree, language string) []string {
	var types []string
	switch language {
	case "go":
		types = []string{"import_declaration"}
	case "python":
		types = []string{"import_statement", "import_from_statement"}
	case "typescript", "tsx", "javascript", "jsx":
		types = []string{"import_statement"}
	default:
		return nil
	}

	var imports []string
	for _, n := range tree.Root.Children {
		for _, t := range types {
			if n.Type == t {
				imports = append(imports, n.GetContent(tree.Source))
				break
			}
		}
	}
	return imports
}

// namedChildContent returns the content of the first direct child with
// the given type.
func namedChildContent(n *Node, source []byte, childType string) string {
	if child := n.FindChildByType(childType); child != nil {
		return child.GetContent(source)
	}
	return ""
}

func goFunctionName(n *Node, source []byte) string {
	return namedChildContent(n, source, "identifier")
}

func goMethodName(n *Node, source []byte) string {
	return namedChildContent(n, source, "field_identifier")
}

// goReceiverType extracts the receiver type name from a Go method
// declaration; the receiver is the first parameter_list child.
func goReceiverType(n *Node, source []byte) string {
	recv := n.FindChildByType("parameter_list")
	if recv == nil {
		return ""
	}
	var name string
	recv.Walk(func(c *Node) bool {
		if c.Type == "type_identifier" {
			name = c.GetContent(source)
			return false
		}
		return true
	})
	return name
}

func goTypeName(n *Node, source []byte) string {
	if spec := n.FindChildByType("type_spec"); spec != nil {
		return namedChildContent(spec, source, "type_identifier")
	}
	return ""
}

func classNodeName(n *Node, source []byte) string {
	if name := namedChildContent(n, source, "identifier"); name != "" {
		return name
	}
	return namedChildContent(n, source, "type_identifier")
}

// jsFunctionVariableName names a const/let/var declaration whose value
// is an arrow function or function expression; empty otherwise.
func jsFunctionVariableName(n *Node, source []byte) string {
	for _, child := range n.Children {
		if child.Type != "variable_declarator" {
			continue
		}
		var name string
		var isFunc bool
		for _, g := range child.Children {
			switch g.Type {
			case "identifier":
				name = g.GetContent(source)
			case "arrow_function", "function", "function_expression":
				isFunc = true
			}
		}
		if name != "" && isFunc {
			return name
		}
	}
	return ""
}
