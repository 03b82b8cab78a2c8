package store

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/coder/hnsw"
	_ "modernc.org/sqlite"

	"github.com/Aman-CERP/ragmcp/internal/errors"
)

const (
	localDBFile    = "local.db"
	localGraphFile = "vectors.hnsw"
)

// LocalStore is the embedded VectorStore: a coder/hnsw graph for
// similarity search and a SQLite table for payloads, content, and
// filtering. The graph is derived state and can be rebuilt from the
// table at any time.
type LocalStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	graph  *hnsw.Graph[uint64]
	dir    string
	dims   int
	logger *slog.Logger
	closed bool

	// idMap maps point ids to internal graph keys; updating a vector
	// orphans the old key instead of deleting it, because the graph
	// library's delete is unreliable. Orphans are swept on Save.
	idMap   map[uint64]uint64
	keyMap  map[uint64]uint64
	nextKey uint64
}

var _ VectorStore = (*LocalStore)(nil)

type localGraphMeta struct {
	IDMap   map[uint64]uint64
	NextKey uint64
	Dims    int
}

// NewLocalStore opens (or creates) the embedded store under dir.
func NewLocalStore(dir string, logger *slog.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, localDBFile))
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &LocalStore{
		db:     db,
		dir:    dir,
		logger: logger,
		idMap:  make(map[uint64]uint64),
		keyMap: make(map[uint64]uint64),
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.loadGraph(); err != nil {
		// A stale or missing graph file is recoverable; rebuild below.
		s.logger.Warn("local graph load failed, rebuilding", "error", err)
		s.resetGraph()
	}
	if s.graph == nil || (s.graph.Len() == 0 && s.rowCount() > 0) {
		if err := s.rebuildGraph(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *LocalStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS points (
		id           INTEGER PRIMARY KEY,
		file_path    TEXT NOT NULL DEFAULT '',
		section      TEXT NOT NULL DEFAULT '',
		language     TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT '',
		is_deleted   INTEGER NOT NULL DEFAULT 0,
		payload      TEXT NOT NULL,
		vector       BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_points_file_path    ON points(file_path);
	CREATE INDEX IF NOT EXISTS idx_points_section      ON points(section);
	CREATE INDEX IF NOT EXISTS idx_points_language     ON points(language);
	CREATE INDEX IF NOT EXISTS idx_points_content_type ON points(content_type);
	CREATE INDEX IF NOT EXISTS idx_points_is_deleted   ON points(is_deleted);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init local schema: %w", err)
	}

	var dims string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'dims'`).Scan(&dims)
	if err == nil {
		fmt.Sscanf(dims, "%d", &s.dims)
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("read stored dimension: %w", err)
	}
	return nil
}

func (s *LocalStore) resetGraph() {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 64
	graph.Ml = 0.25
	s.graph = graph
	s.idMap = make(map[uint64]uint64)
	s.keyMap = make(map[uint64]uint64)
	s.nextKey = 0
}

// EnsureCollection records the dimension on first use and rejects a
// different one afterwards. indexedKeys are fixed by the table schema.
func (s *LocalStore) EnsureCollection(ctx context.Context, name string, dims int, indexedKeys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if s.dims != 0 && s.dims != dims {
		return errors.DimensionMismatch(s.dims, dims)
	}
	if s.dims == 0 {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO meta(key, value) VALUES ('dims', ?), ('collection', ?)`,
			fmt.Sprintf("%d", dims), name); err != nil {
			return fmt.Errorf("record collection meta: %w", err)
		}
		s.dims = dims
	}
	if s.graph == nil {
		s.resetGraph()
	}
	return nil
}

// Upsert writes points to the table and the graph, overwriting by id.
func (s *LocalStore) Upsert(ctx context.Context, points []*Point) error {
	if len(points) == 0 {
		return nil
	}
	if len(points) > MaxBatchSize {
		return errors.BatchLimitExceeded(len(points), MaxBatchSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	for _, p := range points {
		if s.dims != 0 && len(p.Vector) != s.dims {
			return errors.DimensionMismatch(s.dims, len(p.Vector))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO points
		(id, file_path, section, language, content_type, is_deleted, payload, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		payloadJSON, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("encode payload for %d: %w", p.ID, err)
		}
		isDeleted := 0
		if b, _ := p.Payload["is_deleted"].(bool); b {
			isDeleted = 1
		}
		_, err = stmt.ExecContext(ctx,
			int64(p.ID),
			stringPayload(p.Payload, "file_path"),
			stringPayload(p.Payload, "section"),
			stringPayload(p.Payload, "language"),
			stringPayload(p.Payload, "content_type"),
			isDeleted,
			string(payloadJSON),
			encodeVector(p.Vector),
		)
		if err != nil {
			return fmt.Errorf("upsert point %d: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	for _, p := range points {
		s.graphAdd(p.ID, p.Vector)
	}
	return nil
}

// graphAdd inserts a vector under a fresh internal key, orphaning any
// previous key for the same id.
func (s *LocalStore) graphAdd(id uint64, vector []float32) {
	if old, ok := s.idMap[id]; ok {
		delete(s.keyMap, old)
	}
	key := s.nextKey
	s.nextKey++
	s.graph.Add(hnsw.MakeNode(key, vector))
	s.idMap[id] = key
	s.keyMap[key] = id
}

// DeleteByIDs physically removes points from the table; graph entries
// become orphans swept on Save.
func (s *LocalStore) DeleteByIDs(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = int64(id)
	}
	query := fmt.Sprintf(`DELETE FROM points WHERE id IN (%s)`, strings.Join(placeholders, ","))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete points: %w", err)
	}

	for _, id := range ids {
		if key, ok := s.idMap[id]; ok {
			delete(s.keyMap, key)
			delete(s.idMap, id)
		}
	}
	return nil
}

// SoftDelete flags matching rows deleted and returns the count.
func (s *LocalStore) SoftDelete(ctx context.Context, f *Filter) (int, error) {
	return s.setDeleted(ctx, f, true)
}

// Recover clears the deleted flag and returns the count.
func (s *LocalStore) Recover(ctx context.Context, f *Filter) (int, error) {
	return s.setDeleted(ctx, f, false)
}

func (s *LocalStore) setDeleted(ctx context.Context, f *Filter, deleted bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	scan := Filter{}
	if f != nil {
		scan = *f
	}
	scan.IncludeDeleted = false
	scan.DeletedOnly = !deleted

	where, args := localFilterSQL(&scan)
	target := 0
	if deleted {
		target = 1
	}
	// json_set keeps the stored payload and the filter column in step.
	query := fmt.Sprintf(`
		UPDATE points
		SET is_deleted = %d,
		    payload = json_set(payload, '$.is_deleted', json('%t'))
		WHERE %s`, target, deleted, where)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update deletion state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count affected rows: %w", err)
	}
	return int(n), nil
}

// GetPoints fetches points by id in ascending order; missing ids are
// absent.
func (s *LocalStore) GetPoints(ctx context.Context, ids []uint64, withVectors bool) ([]*Point, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = int64(id)
	}
	query := fmt.Sprintf(
		`SELECT id, payload, vector FROM points WHERE id IN (%s) ORDER BY id`,
		strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get points: %w", err)
	}
	defer rows.Close()

	var out []*Point
	for rows.Next() {
		p, err := scanPoint(rows, withVectors)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Scroll pages matching rows by ascending id.
func (s *LocalStore) Scroll(ctx context.Context, f *Filter, cursor uint64, limit int) ([]*Point, uint64, error) {
	if limit <= 0 || limit > MaxBatchSize {
		limit = MaxBatchSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, 0, fmt.Errorf("store is closed")
	}

	where, args := localFilterSQL(f)
	query := fmt.Sprintf(`
		SELECT id, payload, vector FROM points
		WHERE id > ? AND %s
		ORDER BY id
		LIMIT ?`, where)
	args = append([]any{int64(cursor)}, append(args, limit)...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("scroll points: %w", err)
	}
	defer rows.Close()

	var out []*Point
	for rows.Next() {
		p, err := scanPoint(rows, false)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	next := uint64(0)
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

// Search queries the graph with slack, then applies the payload filter
// from the table. Scores are cosine similarity in [0,1].
func (s *LocalStore) Search(ctx context.Context, vector []float32, f *Filter, k int, withVectors bool) ([]*ScoredPoint, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if s.dims != 0 && len(vector) != s.dims {
		return nil, errors.DimensionMismatch(s.dims, len(vector))
	}
	if s.graph == nil || s.graph.Len() == 0 {
		return []*ScoredPoint{}, nil
	}

	// Over-fetch so filtered and orphaned candidates still leave k.
	nodes := s.graph.Search(vector, k*4+16)

	type candidate struct {
		id    uint64
		score float32
	}
	candidates := make([]candidate, 0, len(nodes))
	for _, node := range nodes {
		id, ok := s.keyMap[node.Key]
		if !ok {
			continue // orphaned by update or delete
		}
		distance := s.graph.Distance(vector, node.Value)
		candidates = append(candidates, candidate{id: id, score: 1.0 - distance/2.0})
	}
	if len(candidates) == 0 {
		return []*ScoredPoint{}, nil
	}

	scoreByID := make(map[uint64]float32, len(candidates))
	ids := make([]any, 0, len(candidates))
	placeholders := make([]string, 0, len(candidates))
	for _, c := range candidates {
		scoreByID[c.id] = c.score
		ids = append(ids, int64(c.id))
		placeholders = append(placeholders, "?")
	}

	where, filterArgs := localFilterSQL(f)
	query := fmt.Sprintf(
		`SELECT id, payload, vector FROM points WHERE id IN (%s) AND %s`,
		strings.Join(placeholders, ","), where)

	rows, err := s.db.QueryContext(ctx, query, append(ids, filterArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("search filter: %w", err)
	}
	defer rows.Close()

	var out []*ScoredPoint
	for rows.Next() {
		p, err := scanPoint(rows, withVectors)
		if err != nil {
			return nil, err
		}
		out = append(out, &ScoredPoint{Point: *p, Score: scoreByID[p.ID]})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Stats counts rows split by deletion state.
func (s *LocalStore) Stats(ctx context.Context) (*CollectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	var total, deleted int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_deleted), 0) FROM points`).Scan(&total, &deleted)
	if err != nil {
		return nil, fmt.Errorf("count points: %w", err)
	}
	return &CollectionStats{Total: total, Active: total - deleted, Deleted: deleted}, nil
}

// Save persists the graph atomically. When orphans outnumber live
// entries the graph is rebuilt from the table first.
func (s *LocalStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if s.graph == nil {
		return nil
	}

	if orphans := s.graph.Len() - len(s.idMap); orphans > len(s.idMap) {
		s.logger.Info("compacting local graph", "orphans", orphans, "live", len(s.idMap))
		if err := s.rebuildGraph(); err != nil {
			return err
		}
	}

	path := filepath.Join(s.dir, localGraphFile)
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create graph file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close graph file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename graph file: %w", err)
	}

	if err := s.saveGraphMeta(path + ".meta"); err != nil {
		return err
	}
	_, err = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

func (s *LocalStore) saveGraphMeta(path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create graph meta: %w", err)
	}
	meta := localGraphMeta{IDMap: s.idMap, NextKey: s.nextKey, Dims: s.dims}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode graph meta: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close graph meta: %w", err)
	}
	return os.Rename(tmp, path)
}

func (s *LocalStore) loadGraph() error {
	path := filepath.Join(s.dir, localGraphFile)
	metaFile, err := os.Open(path + ".meta")
	if os.IsNotExist(err) {
		s.resetGraph()
		return nil
	}
	if err != nil {
		return err
	}
	defer metaFile.Close()

	var meta localGraphMeta
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return fmt.Errorf("decode graph meta: %w", err)
	}

	s.resetGraph()
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	s.idMap = meta.IDMap
	s.nextKey = meta.NextKey
	if meta.Dims != 0 {
		s.dims = meta.Dims
	}
	s.keyMap = make(map[uint64]uint64, len(meta.IDMap))
	for id, key := range meta.IDMap {
		s.keyMap[key] = id
	}
	return nil
}

// rebuildGraph reconstructs the graph from the table, dropping orphans.
func (s *LocalStore) rebuildGraph() error {
	s.resetGraph()

	rows, err := s.db.Query(`SELECT id, vector FROM points ORDER BY id`)
	if err != nil {
		return fmt.Errorf("read vectors for rebuild: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return fmt.Errorf("scan vector: %w", err)
		}
		s.graphAdd(uint64(id), decodeVector(blob))
	}
	return rows.Err()
}

func (s *LocalStore) rowCount() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM points`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close saves the graph and closes the database.
func (s *LocalStore) Close() error {
	if err := s.Save(); err != nil {
		s.logger.Warn("graph save on close failed", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return s.db.Close()
}

// localFilterSQL renders a Filter as a WHERE fragment with args.
func localFilterSQL(f *Filter) (string, []any) {
	var conds []string
	var args []any

	if f != nil {
		if f.FilePath != "" {
			conds = append(conds, "file_path = ?")
			args = append(args, f.FilePath)
		}
		if f.Section != "" {
			conds = append(conds, "section = ?")
			args = append(args, f.Section)
		}
		if f.Language != "" {
			conds = append(conds, "language = ?")
			args = append(args, f.Language)
		}
		if f.ContentType != "" {
			conds = append(conds, "content_type = ?")
			args = append(args, f.ContentType)
		}
	}

	switch {
	case f != nil && f.DeletedOnly:
		conds = append(conds, "is_deleted = 1")
	case f != nil && f.IncludeDeleted:
		// no condition
	default:
		conds = append(conds, "is_deleted = 0")
	}

	if len(conds) == 0 {
		return "1=1", nil
	}
	return strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoint(rows rowScanner, withVector bool) (*Point, error) {
	var id int64
	var payloadJSON string
	var blob []byte
	if err := rows.Scan(&id, &payloadJSON, &blob); err != nil {
		return nil, fmt.Errorf("scan point: %w", err)
	}

	payload := map[string]any{}
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("decode payload for %d: %w", id, err)
	}

	p := &Point{ID: uint64(id), Payload: payload}
	if withVector {
		p.Vector = decodeVector(blob)
	}
	return p, nil
}

// encodeVector packs float32s little-endian.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func stringPayload(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}
