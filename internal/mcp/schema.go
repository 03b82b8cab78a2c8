package mcp

// Tier-2 schema registry. Kept by hand so the examples stay truthful;
// the typed handler signatures remain the source of truth for decoding.

func obj(required []string, props map[string]any) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(t, desc string) map[string]any {
	return map[string]any{"type": t, "description": desc}
}

func arr(itemType, desc string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": itemType}, "description": desc}
}

var pointSchema = obj([]string{"id", "vector"}, map[string]any{
	"id":      prop("string", "point id as a decimal string"),
	"vector":  arr("number", "embedding vector matching the collection dimension"),
	"payload": prop("object", "flat metadata payload"),
})

var filterSchema = obj(nil, map[string]any{
	"file_path":       prop("string", "exact file path match"),
	"section":         prop("string", "exact section heading match"),
	"language":        prop("string", "programming language"),
	"content_type":    prop("string", "one of text, code, list, table"),
	"include_deleted": prop("boolean", "include soft-deleted points"),
	"deleted_only":    prop("boolean", "only soft-deleted points"),
})

var toolSchemas = map[string]ToolSchema{
	"search": {
		Name:        "search",
		Description: "Hybrid semantic + keyword retrieval returning raw chunks with scores.",
		InputSchema: obj([]string{"query"}, map[string]any{
			"query":        prop("string", "the search query"),
			"content_type": prop("string", "restrict to code or text chunks"),
			"language":     prop("string", "restrict to one programming language"),
			"top_k":        prop("integer", "result count, capped at 100"),
		}),
		Examples: []map[string]any{
			{"query": "connection pool configuration"},
			{"query": "def authenticate", "content_type": "code", "language": "python"},
			{"query": "retry policy", "top_k": 5},
		},
	},
	"ask": {
		Name:        "ask",
		Description: "Question answering over the index: classify, retrieve, rerank, synthesize with citations.",
		InputSchema: obj([]string{"question"}, map[string]any{
			"question": prop("string", "the question to answer"),
		}),
		Examples: []map[string]any{
			{"question": "List all supported storage backends"},
			{"question": "What is the difference between soft delete and hard delete?"},
		},
	},
	"explain": {
		Name:        "explain",
		Description: "Explain a topic from the indexed content, grouped by file with citations.",
		InputSchema: obj([]string{"topic"}, map[string]any{
			"topic": prop("string", "the topic to explain"),
		}),
		Examples: []map[string]any{
			{"topic": "the incremental indexing pipeline"},
			{"topic": "hybrid score fusion"},
		},
	},
	"add_points": {
		Name:        "add_points",
		Description: "Insert pre-embedded points. At most 1000 per call; vectors must match the collection dimension.",
		InputSchema: obj([]string{"points"}, map[string]any{
			"points": map[string]any{"type": "array", "items": pointSchema, "description": "points to insert"},
		}),
		Examples: []map[string]any{
			{"points": []any{map[string]any{"id": "42", "vector": []any{0.1, 0.2}, "payload": map[string]any{"file_path": "docs/a.md"}}}},
		},
	},
	"update_points": {
		Name:        "update_points",
		Description: "Overwrite points by id. Same contract as add_points.",
		InputSchema: obj([]string{"points"}, map[string]any{
			"points": map[string]any{"type": "array", "items": pointSchema, "description": "points to overwrite"},
		}),
		Examples: []map[string]any{
			{"points": []any{map[string]any{"id": "42", "vector": []any{0.3, 0.4}}}},
		},
	},
	"delete_points": {
		Name:        "delete_points",
		Description: "Delete points by id. Soft by default; dry_run reports the would-delete count.",
		InputSchema: obj([]string{"ids"}, map[string]any{
			"ids":         arr("string", "point ids as decimal strings"),
			"soft_delete": prop("boolean", "flag instead of removing (default true)"),
			"dry_run":     prop("boolean", "report the count without deleting"),
		}),
		Examples: []map[string]any{
			{"ids": []any{"42", "43"}},
			{"ids": []any{"42"}, "dry_run": true},
			{"ids": []any{"42"}, "soft_delete": false},
		},
	},
	"get_points": {
		Name:        "get_points",
		Description: "Fetch points by id with payloads. Missing ids report POINT_NOT_FOUND per id.",
		InputSchema: obj([]string{"ids"}, map[string]any{
			"ids":          arr("string", "point ids as decimal strings"),
			"with_vectors": prop("boolean", "include vectors in the response"),
		}),
		Examples: []map[string]any{
			{"ids": []any{"42"}},
			{"ids": []any{"42", "43"}, "with_vectors": true},
		},
	},
	"query_points": {
		Name:        "query_points",
		Description: "Scroll points by metadata filter with cursor pagination. Limit capped at 1000.",
		InputSchema: obj(nil, map[string]any{
			"filter": filterSchema,
			"limit":  prop("integer", "page size, capped at 1000"),
			"cursor": prop("string", "opaque cursor from a previous page"),
		}),
		Examples: []map[string]any{
			{"filter": map[string]any{"file_path": "docs/setup.md"}},
			{"filter": map[string]any{"deleted_only": true}, "limit": 100},
		},
	},
	"add_document": {
		Name:        "add_document",
		Description: "Chunk, embed, and index one document from supplied content.",
		InputSchema: obj([]string{"file_path", "content"}, map[string]any{
			"file_path": prop("string", "project-relative path the document is stored under"),
			"content":   prop("string", "full document text"),
		}),
		Examples: []map[string]any{
			{"file_path": "docs/faq.md", "content": "# FAQ\n\n..."},
		},
	},
	"update_document": {
		Name:        "update_document",
		Description: "Re-index one document from supplied content; unchanged chunks are skipped.",
		InputSchema: obj([]string{"file_path", "content"}, map[string]any{
			"file_path": prop("string", "project-relative path"),
			"content":   prop("string", "full updated document text"),
		}),
		Examples: []map[string]any{
			{"file_path": "docs/faq.md", "content": "# FAQ\n\nrevised..."},
		},
	},
	"delete_document": {
		Name:        "delete_document",
		Description: "Delete every chunk of one document. Soft by default.",
		InputSchema: obj([]string{"file_path"}, map[string]any{
			"file_path":   prop("string", "project-relative path"),
			"soft_delete": prop("boolean", "flag instead of removing (default true)"),
		}),
		Examples: []map[string]any{
			{"file_path": "docs/faq.md"},
			{"file_path": "docs/faq.md", "soft_delete": false},
		},
	},
	"get_document": {
		Name:        "get_document",
		Description: "Return all chunks of one document in line order.",
		InputSchema: obj([]string{"file_path"}, map[string]any{
			"file_path": prop("string", "project-relative path"),
		}),
		Examples: []map[string]any{
			{"file_path": "docs/setup.md"},
		},
	},
	"get_collection_stats": {
		Name:        "get_collection_stats",
		Description: "Report total, active, and soft-deleted point counts per configured store.",
		InputSchema: obj(nil, map[string]any{}),
		Examples: []map[string]any{
			{},
		},
	},
	"index_repository": {
		Name:        "index_repository",
		Description: "Run the incremental indexing pipeline over the configured globs.",
		InputSchema: obj(nil, map[string]any{
			"path":      prop("string", "override the configured project root"),
			"docs_only": prop("boolean", "only process doc globs"),
			"code_only": prop("boolean", "only process code globs"),
		}),
		Examples: []map[string]any{
			{},
			{"docs_only": true},
		},
	},
	"get_manifest": {
		Name:        "get_manifest",
		Description: "List every tool with a one-line brief, category, and use cases.",
		InputSchema: obj(nil, map[string]any{}),
		Examples: []map[string]any{
			{},
		},
	},
	"get_tool_schema": {
		Name:        "get_tool_schema",
		Description: "Full input schema and example invocations for one tool.",
		InputSchema: obj([]string{"name"}, map[string]any{
			"name": prop("string", "tool name from get_manifest"),
		}),
		Examples: []map[string]any{
			{"name": "search"},
			{"name": "delete_points"},
		},
	},
}
