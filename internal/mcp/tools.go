package mcp

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/ragmcp/internal/errors"
	"github.com/Aman-CERP/ragmcp/internal/index"
	"github.com/Aman-CERP/ragmcp/internal/search"
	"github.com/Aman-CERP/ragmcp/internal/store"
)

// maxSearchTopK caps the search tool's top_k.
const maxSearchTopK = 100

// maxQueryLimit caps the query_points page size.
const maxQueryLimit = 1000

// --- query tools ---

type SearchInput struct {
	Query       string `json:"query" jsonschema:"the search query"`
	ContentType string `json:"content_type,omitempty" jsonschema:"restrict to code or text chunks"`
	Language    string `json:"language,omitempty" jsonschema:"restrict to one programming language"`
	TopK        int    `json:"top_k,omitempty" jsonschema:"result count, capped at 100"`
}

type ChunkOutput struct {
	ID          string  `json:"id"`
	Score       float64 `json:"score"`
	FilePath    string  `json:"file_path"`
	LineStart   int     `json:"line_start"`
	LineEnd     int     `json:"line_end"`
	Section     string  `json:"section,omitempty"`
	Language    string  `json:"language,omitempty"`
	ContentType string  `json:"content_type,omitempty"`
	Content     string  `json:"content"`
	Source      string  `json:"source"`
	Expanded    bool    `json:"expanded,omitempty"`
}

type SearchData struct {
	Intent     string        `json:"intent"`
	Confidence float64       `json:"confidence"`
	Chunks     []ChunkOutput `json:"chunks"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, Envelope, error) {
	const op = "search"
	start := time.Now()

	if strings.TrimSpace(in.Query) == "" {
		return nil, fail(op, start, nil, entryFrom(errors.Validation("query is required"), errors.CodeValidation)), nil
	}
	topK := in.TopK
	if topK > maxSearchTopK {
		topK = maxSearchTopK
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ranked, cls, err := s.engine.SearchWith(ctx, in.Query, search.Options{
		ContentType: in.ContentType,
		Language:    in.Language,
		TopK:        topK,
	})
	if err != nil {
		return nil, fail(op, start, nil, entryFrom(err, errors.CodeStoreUnavailable)), nil
	}

	data := SearchData{
		Intent:     string(cls.Intent),
		Confidence: cls.Confidence,
		Chunks:     chunkOutputs(ranked),
	}
	return nil, ok(op, start, len(data.Chunks), data), nil
}

type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer"`
}

type CitationOutput struct {
	FilePath  string `json:"file_path"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	Section   string `json:"section,omitempty"`
}

type AnswerData struct {
	Answer     string           `json:"answer"`
	Intent     string           `json:"intent"`
	Confidence float64          `json:"confidence"`
	Citations  []CitationOutput `json:"citations"`
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, Envelope, error) {
	const op = "ask"
	start := time.Now()

	if strings.TrimSpace(in.Question) == "" {
		return nil, fail(op, start, nil, entryFrom(errors.Validation("question is required"), errors.CodeValidation)), nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	answer, cls, err := s.engine.Ask(ctx, in.Question)
	if err != nil {
		return nil, fail(op, start, nil, entryFrom(err, errors.CodeStoreUnavailable)), nil
	}
	data := answerData(answer, cls)
	return nil, ok(op, start, len(data.Citations), data), nil
}

type ExplainInput struct {
	Topic string `json:"topic" jsonschema:"the topic to explain"`
}

func (s *Server) handleExplain(ctx context.Context, _ *mcp.CallToolRequest, in ExplainInput) (*mcp.CallToolResult, Envelope, error) {
	const op = "explain"
	start := time.Now()

	if strings.TrimSpace(in.Topic) == "" {
		return nil, fail(op, start, nil, entryFrom(errors.Validation("topic is required"), errors.CodeValidation)), nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	answer, cls, err := s.engine.Explain(ctx, in.Topic)
	if err != nil {
		return nil, fail(op, start, nil, entryFrom(err, errors.CodeStoreUnavailable)), nil
	}
	data := answerData(answer, cls)
	return nil, ok(op, start, len(data.Citations), data), nil
}

// --- point tools ---

type PointInput struct {
	ID      string         `json:"id" jsonschema:"point id as a decimal string"`
	Vector  []float32      `json:"vector" jsonschema:"embedding vector matching the collection dimension"`
	Payload map[string]any `json:"payload,omitempty" jsonschema:"flat metadata payload"`
}

type PointsInput struct {
	Points []PointInput `json:"points" jsonschema:"points to upsert"`
}

type UpsertData struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleAddPoints(ctx context.Context, _ *mcp.CallToolRequest, in PointsInput) (*mcp.CallToolResult, Envelope, error) {
	return nil, s.upsertPoints(ctx, "add_points", in), nil
}

func (s *Server) handleUpdatePoints(ctx context.Context, _ *mcp.CallToolRequest, in PointsInput) (*mcp.CallToolResult, Envelope, error) {
	return nil, s.upsertPoints(ctx, "update_points", in), nil
}

// upsertPoints validates each point, upserts the valid ones, and
// reports per-point errors. Any per-point error makes the envelope a
// partial failure with the successful ids still in data.
func (s *Server) upsertPoints(ctx context.Context, op string, in PointsInput) Envelope {
	start := time.Now()

	if len(in.Points) == 0 {
		return fail(op, start, nil, entryFrom(errors.Validation("points must not be empty"), errors.CodeValidation))
	}
	if len(in.Points) > store.MaxBatchSize {
		return fail(op, start, nil, entryFrom(errors.BatchLimitExceeded(len(in.Points), store.MaxBatchSize), errors.CodeBatchLimitExceeded))
	}

	var entries []ErrorEntry
	var points []*store.Point
	var docs []*store.Document
	for _, p := range in.Points {
		id, err := parseID(p.ID)
		if err != nil {
			entries = append(entries, entryFrom(err, errors.CodeValidation))
			continue
		}
		if len(p.Vector) == 0 {
			entries = append(entries, entryFrom(
				errors.Validation("point %s has no vector", p.ID).WithDetail("id", p.ID),
				errors.CodeValidation))
			continue
		}
		points = append(points, &store.Point{ID: id, Vector: p.Vector, Payload: p.Payload})
		if content, okc := p.Payload["content"].(string); okc {
			docs = append(docs, &store.Document{ID: id, Content: content})
		}
	}

	if len(points) > 0 {
		if err := s.primary().Upsert(ctx, points); err != nil {
			return fail(op, start, nil, entryFrom(err, errors.CodeStoreUnavailable))
		}
		s.mirrorIndex(ctx, docs)
	}

	ids := make([]string, len(points))
	for i, p := range points {
		ids[i] = formatID(p.ID)
	}
	if len(entries) > 0 {
		env := fail(op, start, UpsertData{IDs: ids}, entries...)
		env.Metadata.Count = len(ids)
		return env
	}
	return ok(op, start, len(ids), UpsertData{IDs: ids})
}

type DeletePointsInput struct {
	IDs        []string `json:"ids" jsonschema:"point ids as decimal strings"`
	SoftDelete *bool    `json:"soft_delete,omitempty" jsonschema:"flag instead of removing, default true"`
	DryRun     bool     `json:"dry_run,omitempty" jsonschema:"report the count without deleting"`
}

type DeleteData struct {
	Deleted     int      `json:"deleted"`
	WouldDelete int      `json:"would_delete,omitempty"`
	IDs         []string `json:"ids,omitempty"`
}

func (s *Server) handleDeletePoints(ctx context.Context, _ *mcp.CallToolRequest, in DeletePointsInput) (*mcp.CallToolResult, Envelope, error) {
	const op = "delete_points"
	start := time.Now()

	ids, entries := parseIDs(in.IDs)
	if len(entries) > 0 {
		return nil, fail(op, start, nil, entries...), nil
	}
	if len(ids) == 0 {
		return nil, fail(op, start, nil, entryFrom(errors.Validation("ids must not be empty"), errors.CodeValidation)), nil
	}
	if len(ids) > store.MaxBatchSize {
		return nil, fail(op, start, nil, entryFrom(errors.BatchLimitExceeded(len(ids), store.MaxBatchSize), errors.CodeBatchLimitExceeded)), nil
	}

	// Only points that exist count toward the result.
	existing, err := s.primary().GetPoints(ctx, ids, false)
	if err != nil {
		return nil, fail(op, start, nil, entryFrom(err, errors.CodeStoreUnavailable)), nil
	}
	found := make([]uint64, len(existing))
	for i, p := range existing {
		found[i] = p.ID
	}

	if in.DryRun {
		data := DeleteData{WouldDelete: len(found), IDs: formatIDs(found)}
		return nil, ok(op, start, len(found), data), nil
	}

	soft := in.SoftDelete == nil || *in.SoftDelete
	if soft {
		n, err := s.setDeleted(ctx, found, true)
		if err != nil {
			return nil, fail(op, start, nil, entryFrom(err, errors.CodeStoreUnavailable)), nil
		}
		return nil, ok(op, start, n, DeleteData{Deleted: n, IDs: formatIDs(found)}), nil
	}

	if err := s.primary().DeleteByIDs(ctx, found); err != nil {
		return nil, fail(op, start, nil, entryFrom(err, errors.CodeStoreUnavailable)), nil
	}
	s.mirrorDelete(ctx, found)
	return nil, ok(op, start, len(found), DeleteData{Deleted: len(found), IDs: formatIDs(found)}), nil
}

type GetPointsInput struct {
	IDs         []string `json:"ids" jsonschema:"point ids as decimal strings"`
	WithVectors bool     `json:"with_vectors,omitempty" jsonschema:"include vectors in the response"`
}

type PointOutput struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

type PointsData struct {
	Points []PointOutput `json:"points"`
}

func (s *Server) handleGetPoints(ctx context.Context, _ *mcp.CallToolRequest, in GetPointsInput) (*mcp.CallToolResult, Envelope, error) {
	const op = "get_points"
	start := time.Now()

	ids, entries := parseIDs(in.IDs)
	if len(entries) > 0 {
		return nil, fail(op, start, nil, entries...), nil
	}
	if len(ids) == 0 {
		return nil, fail(op, start, nil, entryFrom(errors.Validation("ids must not be empty"), errors.CodeValidation)), nil
	}

	points, err := s.primary().GetPoints(ctx, ids, in.WithVectors)
	if err != nil {
		return nil, fail(op, start, nil, entryFrom(err, errors.CodeStoreUnavailable)), nil
	}

	foundSet := make(map[uint64]bool, len(points))
	data := PointsData{Points: make([]PointOutput, 0, len(points))}
	for _, p := range points {
		foundSet[p.ID] = true
		data.Points = append(data.Points, PointOutput{ID: formatID(p.ID), Vector: p.Vector, Payload: p.Payload})
	}

	var misses []ErrorEntry
	for i, id := range ids {
		if foundSet[id] {
			continue
		}
		e := errors.PointNotFound(id)
		if hint := precisionHint(in.IDs[i]); hint != "" {
			e = e.WithSuggestion(hint)
		}
		misses = append(misses, entryFrom(e, errors.CodePointNotFound))
	}

	if len(misses) > 0 {
		env := fail(op, start, data, misses...)
		env.Metadata.Count = len(data.Points)
		return nil, env, nil
	}
	return nil, ok(op, start, len(data.Points), data), nil
}

type FilterInput struct {
	FilePath       string `json:"file_path,omitempty" jsonschema:"exact file path match"`
	Section        string `json:"section,omitempty" jsonschema:"exact section heading match"`
	Language       string `json:"language,omitempty" jsonschema:"programming language"`
	ContentType    string `json:"content_type,omitempty" jsonschema:"one of text code list table"`
	IncludeDeleted bool   `json:"include_deleted,omitempty" jsonschema:"include soft-deleted points"`
	DeletedOnly    bool   `json:"deleted_only,omitempty" jsonschema:"only soft-deleted points"`
}

type QueryPointsInput struct {
	Filter FilterInput `json:"filter,omitempty" jsonschema:"metadata filter"`
	Limit  int         `json:"limit,omitempty" jsonschema:"page size, capped at 1000"`
	Cursor string      `json:"cursor,omitempty" jsonschema:"cursor from a previous page"`
}

type QueryPointsData struct {
	Points     []PointOutput `json:"points"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

func (s *Server) handleQueryPoints(ctx context.Context, _ *mcp.CallToolRequest, in QueryPointsInput) (*mcp.CallToolResult, Envelope, error) {
	const op = "query_points"
	start := time.Now()

	limit := in.Limit
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	var cursor uint64
	if in.Cursor != "" {
		var err error
		if cursor, err = parseID(in.Cursor); err != nil {
			return nil, fail(op, start, nil, entryFrom(err, errors.CodeValidation)), nil
		}
	}

	filter := &store.Filter{
		FilePath:       in.Filter.FilePath,
		Section:        in.Filter.Section,
		Language:       in.Filter.Language,
		ContentType:    in.Filter.ContentType,
		IncludeDeleted: in.Filter.IncludeDeleted,
		DeletedOnly:    in.Filter.DeletedOnly,
	}
	points, next, err := s.primary().Scroll(ctx, filter, cursor, limit)
	if err != nil {
		return nil, fail(op, start, nil, entryFrom(err, errors.CodeStoreUnavailable)), nil
	}

	data := QueryPointsData{Points: make([]PointOutput, len(points))}
	for i, p := range points {
		data.Points[i] = PointOutput{ID: formatID(p.ID), Payload: p.Payload}
	}
	if next != 0 {
		data.NextCursor = formatID(next)
	}
	return nil, ok(op, start, len(data.Points), data), nil
}

// --- document tools ---

type DocumentInput struct {
	FilePath string `json:"file_path" jsonschema:"project-relative path"`
	Content  string `json:"content" jsonschema:"full document text"`
}

func (s *Server) handleAddDocument(ctx context.Context, _ *mcp.CallToolRequest, in DocumentInput) (*mcp.CallToolResult, Envelope, error) {
	return nil, s.indexDocument(ctx, "add_document", in), nil
}

func (s *Server) handleUpdateDocument(ctx context.Context, _ *mcp.CallToolRequest, in DocumentInput) (*mcp.CallToolResult, Envelope, error) {
	return nil, s.indexDocument(ctx, "update_document", in), nil
}

// indexDocument backs add_document and update_document. The diff makes
// both idempotent, so they share an implementation.
func (s *Server) indexDocument(ctx context.Context, op string, in DocumentInput) Envelope {
	start := time.Now()

	if in.FilePath == "" {
		return fail(op, start, nil, entryFrom(errors.Validation("file_path is required"), errors.CodeValidation))
	}
	if strings.TrimSpace(in.Content) == "" {
		return fail(op, start, nil, entryFrom(errors.Validation("content must not be empty"), errors.CodeValidation))
	}

	summary, err := s.coord.IndexDocument(ctx, in.FilePath, []byte(in.Content))
	if err != nil {
		return fail(op, start, nil, entryFrom(err, errors.CodeStoreUnavailable))
	}
	return ok(op, start, summary.Upserted, summary)
}

type DeleteDocumentInput struct {
	FilePath   string `json:"file_path" jsonschema:"project-relative path"`
	SoftDelete *bool  `json:"soft_delete,omitempty" jsonschema:"flag instead of removing, default true"`
}

func (s *Server) handleDeleteDocument(ctx context.Context, _ *mcp.CallToolRequest, in DeleteDocumentInput) (*mcp.CallToolResult, Envelope, error) {
	const op = "delete_document"
	start := time.Now()

	if in.FilePath == "" {
		return nil, fail(op, start, nil, entryFrom(errors.Validation("file_path is required"), errors.CodeValidation)), nil
	}

	soft := in.SoftDelete == nil || *in.SoftDelete
	n, err := s.coord.RemoveDocument(ctx, in.FilePath, soft)
	if err != nil {
		return nil, fail(op, start, nil, entryFrom(err, errors.CodeStoreUnavailable)), nil
	}
	return nil, ok(op, start, n, DeleteData{Deleted: n}), nil
}

type GetDocumentInput struct {
	FilePath string `json:"file_path" jsonschema:"project-relative path"`
}

func (s *Server) handleGetDocument(ctx context.Context, _ *mcp.CallToolRequest, in GetDocumentInput) (*mcp.CallToolResult, Envelope, error) {
	const op = "get_document"
	start := time.Now()

	if in.FilePath == "" {
		return nil, fail(op, start, nil, entryFrom(errors.Validation("file_path is required"), errors.CodeValidation)), nil
	}

	var chunks []ChunkOutput
	for _, src := range s.sources() {
		filter := &store.Filter{FilePath: in.FilePath}
		var cursor uint64
		for {
			points, next, err := src.Store.Scroll(ctx, filter, cursor, store.MaxBatchSize)
			if err != nil {
				return nil, fail(op, start, nil, entryFrom(err, errors.CodeStoreUnavailable)), nil
			}
			for _, p := range points {
				chunks = append(chunks, pointChunkOutput(p, src.Name))
			}
			if next == 0 {
				break
			}
			cursor = next
		}
	}

	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].LineStart < chunks[j].LineStart })
	return nil, ok(op, start, len(chunks), PointsChunksData{Chunks: chunks}), nil
}

type PointsChunksData struct {
	Chunks []ChunkOutput `json:"chunks"`
}

// --- admin tools ---

type EmptyInput struct{}

type StatsData struct {
	Collections map[string]*store.CollectionStats `json:"collections"`
	BM25Docs    int                               `json:"bm25_documents"`
}

func (s *Server) handleCollectionStats(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, Envelope, error) {
	const op = "get_collection_stats"
	start := time.Now()

	data := StatsData{Collections: make(map[string]*store.CollectionStats)}
	for _, src := range s.sources() {
		stats, err := src.Store.Stats(ctx)
		if err != nil {
			return nil, fail(op, start, nil, entryFrom(err, errors.CodeStoreUnavailable)), nil
		}
		data.Collections[src.Name] = stats
	}
	if s.bm25 != nil {
		if bs := s.bm25.Stats(); bs != nil {
			data.BM25Docs = bs.DocumentCount
		}
	}
	return nil, ok(op, start, len(data.Collections), data), nil
}

type IndexRepositoryInput struct {
	Path     string `json:"path,omitempty" jsonschema:"override the configured project root"`
	DocsOnly bool   `json:"docs_only,omitempty" jsonschema:"only process doc globs"`
	CodeOnly bool   `json:"code_only,omitempty" jsonschema:"only process code globs"`
}

func (s *Server) handleIndexRepository(ctx context.Context, _ *mcp.CallToolRequest, in IndexRepositoryInput) (*mcp.CallToolResult, Envelope, error) {
	const op = "index_repository"
	start := time.Now()

	if in.DocsOnly && in.CodeOnly {
		return nil, fail(op, start, nil, entryFrom(errors.Validation("docs_only and code_only are mutually exclusive"), errors.CodeValidation)), nil
	}

	summary, err := s.coord.Run(ctx, index.RunOptions{
		Root:     in.Path,
		DocsOnly: in.DocsOnly,
		CodeOnly: in.CodeOnly,
	})
	if err != nil {
		return nil, fail(op, start, summary, entryFrom(err, errors.CodeStoreUnavailable)), nil
	}
	if summary.FilesFailed > 0 {
		env := fail(op, start, summary, entryFrom(
			errors.Newf(errors.CodeParseFailed, "%d of %d files failed to index", summary.FilesFailed, summary.FilesScanned),
			errors.CodeParseFailed))
		env.Metadata.Count = summary.FilesIndexed
		return nil, env, nil
	}
	return nil, ok(op, start, summary.FilesIndexed, summary), nil
}

// --- manifest tools ---

type ManifestData struct {
	Tools []ToolBrief `json:"tools"`
}

func (s *Server) handleGetManifest(_ context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, Envelope, error) {
	const op = "get_manifest"
	start := time.Now()
	briefs := s.manifest.Briefs()
	return nil, ok(op, start, len(briefs), ManifestData{Tools: briefs}), nil
}

type ToolSchemaInput struct {
	Name string `json:"name" jsonschema:"tool name from get_manifest"`
}

func (s *Server) handleGetToolSchema(_ context.Context, _ *mcp.CallToolRequest, in ToolSchemaInput) (*mcp.CallToolResult, Envelope, error) {
	const op = "get_tool_schema"
	start := time.Now()

	schema, found := s.manifest.Schema(in.Name)
	if !found {
		e := errors.Validation("unknown tool %q", in.Name)
		for _, name := range s.manifest.KnownNames() {
			e = e.WithSuggestion(name)
		}
		return nil, fail(op, start, nil, entryFrom(e, errors.CodeValidation)), nil
	}
	return nil, ok(op, start, 1, schema), nil
}

// --- shared plumbing ---

// setDeleted flips is_deleted on specific points in the primary store
// and keeps the BM25 sidecar in step.
func (s *Server) setDeleted(ctx context.Context, ids []uint64, deleted bool) (int, error) {
	changed := 0
	st := s.primary()
	for batchStart := 0; batchStart < len(ids); batchStart += store.MaxBatchSize {
		batch := ids[batchStart:min(batchStart+store.MaxBatchSize, len(ids))]
		points, err := st.GetPoints(ctx, batch, true)
		if err != nil {
			return changed, err
		}
		var docs []*store.Document
		for _, p := range points {
			p.Payload["is_deleted"] = deleted
			if !deleted {
				if content, okc := p.Payload["content"].(string); okc {
					docs = append(docs, &store.Document{ID: p.ID, Content: content})
				}
			}
		}
		if err := st.Upsert(ctx, points); err != nil {
			return changed, err
		}
		changed += len(points)
		if deleted {
			s.mirrorDelete(ctx, batch)
		} else {
			s.mirrorIndex(ctx, docs)
		}
	}
	return changed, nil
}

func (s *Server) mirrorIndex(ctx context.Context, docs []*store.Document) {
	if s.bm25 == nil || len(docs) == 0 {
		return
	}
	if err := s.bm25.Index(ctx, docs); err != nil {
		s.logger.Warn("bm25 sidecar index failed", "error", err)
	}
}

func (s *Server) mirrorDelete(ctx context.Context, ids []uint64) {
	if s.bm25 == nil || len(ids) == 0 {
		return
	}
	if err := s.bm25.Delete(ctx, ids); err != nil {
		s.logger.Warn("bm25 sidecar delete failed", "error", err)
	}
}

func parseIDs(raw []string) ([]uint64, []ErrorEntry) {
	var ids []uint64
	var entries []ErrorEntry
	for _, r := range raw {
		id, err := parseID(r)
		if err != nil {
			entries = append(entries, entryFrom(err, errors.CodeValidation))
			continue
		}
		ids = append(ids, id)
	}
	return ids, entries
}

func formatIDs(ids []uint64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = formatID(id)
	}
	return out
}

func chunkOutputs(ranked []*search.Candidate) []ChunkOutput {
	out := make([]ChunkOutput, len(ranked))
	for i, c := range ranked {
		contentType, _ := c.Payload["content_type"].(string)
		out[i] = ChunkOutput{
			ID:          formatID(c.ID),
			Score:       c.Score,
			FilePath:    c.FilePath(),
			LineStart:   c.LineStart(),
			LineEnd:     c.LineEnd(),
			Section:     c.Section(),
			Language:    c.Language(),
			ContentType: contentType,
			Content:     c.Content(),
			Source:      c.Source,
			Expanded:    c.Expanded,
		}
	}
	return out
}

func pointChunkOutput(p *store.Point, source string) ChunkOutput {
	str := func(key string) string {
		v, _ := p.Payload[key].(string)
		return v
	}
	num := func(key string) int {
		switch v := p.Payload[key].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
		return 0
	}
	return ChunkOutput{
		ID:          formatID(p.ID),
		FilePath:    str("file_path"),
		LineStart:   num("line_start"),
		LineEnd:     num("line_end"),
		Section:     str("section"),
		Language:    str("language"),
		ContentType: str("content_type"),
		Content:     str("content"),
		Source:      source,
	}
}

func answerData(answer *search.Answer, cls search.Classification) AnswerData {
	data := AnswerData{
		Answer:     answer.Text,
		Intent:     string(cls.Intent),
		Confidence: cls.Confidence,
		Citations:  make([]CitationOutput, len(answer.Citations)),
	}
	for i, c := range answer.Citations {
		data.Citations[i] = CitationOutput{
			FilePath:  c.FilePath,
			LineStart: c.LineStart,
			LineEnd:   c.LineEnd,
			Section:   c.Section,
		}
	}
	return data
}
