package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/Aman-CERP/ragmcp/internal/errors"
)

// QdrantStore implements VectorStore against a Qdrant server over gRPC.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	timeout    time.Duration
	retry      errors.RetryConfig
	logger     *slog.Logger
}

var _ VectorStore = (*QdrantStore)(nil)

// QdrantOptions configures a QdrantStore.
type QdrantOptions struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	// RetryAttempts overrides the default retry count when positive.
	RetryAttempts int
	Logger        *slog.Logger
}

// NewQdrantStore connects to a Qdrant server. The URL accepts
// host:port, http://host:port, or https://host (TLS implies port 6334
// unless given).
func NewQdrantStore(opts QdrantOptions) (*QdrantStore, error) {
	host, port, useTLS, err := parseQdrantURL(opts.URL)
	if err != nil {
		return nil, errors.Config("invalid qdrant url %q: %v", opts.URL, err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: opts.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, errors.StoreUnavailable(err).WithDetail("url", opts.URL)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	retry := errors.DefaultRetryConfig()
	if opts.RetryAttempts > 0 {
		retry.MaxRetries = opts.RetryAttempts
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QdrantStore{
		client:     client,
		collection: opts.Collection,
		timeout:    timeout,
		retry:      retry,
		logger:     logger,
	}, nil
}

// parseQdrantURL splits a store URL into gRPC connection parameters.
func parseQdrantURL(raw string) (host string, port int, useTLS bool, err error) {
	if raw == "" {
		return "", 0, false, fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, err
	}
	useTLS = u.Scheme == "https"
	host = u.Hostname()
	if host == "" {
		return "", 0, false, fmt.Errorf("missing host")
	}
	port = 6334
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port %q", p)
		}
	}
	return host, port, useTLS, nil
}

func (s *QdrantStore) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// EnsureCollection creates the collection with cosine distance and a
// payload index per key. Re-running against an existing collection
// verifies the dimension and fills in any missing indexes.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, dims int, indexedKeys []string) error {
	if name != "" {
		s.collection = name
	}

	return errors.Retry(ctx, s.retry, func() error {
		cctx, cancel := s.callCtx(ctx)
		defer cancel()

		exists, err := s.client.CollectionExists(cctx, s.collection)
		if err != nil {
			return errors.StoreUnavailable(err).WithDetail("collection", s.collection)
		}

		if exists {
			info, err := s.client.GetCollectionInfo(cctx, s.collection)
			if err != nil {
				return errors.StoreUnavailable(err).WithDetail("collection", s.collection)
			}
			if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
				if existing := int(params.GetSize()); existing != dims {
					return errors.DimensionMismatch(existing, dims).
						WithDetail("collection", s.collection)
				}
			}
		} else {
			err = s.client.CreateCollection(cctx, &qdrant.CreateCollection{
				CollectionName: s.collection,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     uint64(dims),
					Distance: qdrant.Distance_Cosine,
				}),
			})
			if err != nil && !strings.Contains(err.Error(), "already exists") {
				return errors.StoreUnavailable(err).WithDetail("collection", s.collection)
			}
		}

		for _, key := range indexedKeys {
			fieldType := qdrant.FieldType_FieldTypeKeyword
			if key == "is_deleted" {
				fieldType = qdrant.FieldType_FieldTypeBool
			}
			// Index creation is idempotent on the server side.
			_, err := s.client.CreateFieldIndex(cctx, &qdrant.CreateFieldIndexCollection{
				CollectionName: s.collection,
				FieldName:      key,
				FieldType:      &fieldType,
			})
			if err != nil && !strings.Contains(err.Error(), "already exists") {
				return errors.StoreUnavailable(err).
					WithDetail("collection", s.collection).
					WithDetail("field", key)
			}
		}
		return nil
	})
}

// Upsert writes points, overwriting on id collision.
func (s *QdrantStore) Upsert(ctx context.Context, points []*Point) error {
	if len(points) == 0 {
		return nil
	}
	if len(points) > MaxBatchSize {
		return errors.BatchLimitExceeded(len(points), MaxBatchSize)
	}

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		structs[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload),
		}
	}

	return errors.Retry(ctx, s.retry, func() error {
		cctx, cancel := s.callCtx(ctx)
		defer cancel()

		_, err := s.client.Upsert(cctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         structs,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return errors.StoreUnavailable(err).WithDetail("count", len(points))
		}
		return nil
	})
}

// DeleteByIDs physically removes points.
func (s *QdrantStore) DeleteByIDs(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDNum(id)
	}

	return errors.Retry(ctx, s.retry, func() error {
		cctx, cancel := s.callCtx(ctx)
		defer cancel()

		_, err := s.client.Delete(cctx, &qdrant.DeletePoints{
			CollectionName: s.collection,
			Points:         qdrant.NewPointsSelector(pointIDs...),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return errors.StoreUnavailable(err).WithDetail("count", len(ids))
		}
		return nil
	})
}

// SoftDelete flags matching points deleted. Pages of MaxBatchSize keep
// the per-request payload bounded and let us report an exact count.
func (s *QdrantStore) SoftDelete(ctx context.Context, f *Filter) (int, error) {
	return s.setDeleted(ctx, f, true)
}

// Recover clears the deleted flag on matching points.
func (s *QdrantStore) Recover(ctx context.Context, f *Filter) (int, error) {
	return s.setDeleted(ctx, f, false)
}

func (s *QdrantStore) setDeleted(ctx context.Context, f *Filter, deleted bool) (int, error) {
	// Flip the filter's deletion side: soft-delete targets active
	// points, recover targets deleted ones.
	scan := Filter{}
	if f != nil {
		scan = *f
	}
	scan.IncludeDeleted = false
	scan.DeletedOnly = false
	if deleted {
		// match active only (default)
	} else {
		scan.DeletedOnly = true
	}

	changed := 0
	cursor := uint64(0)
	for {
		points, next, err := s.Scroll(ctx, &scan, cursor, MaxBatchSize)
		if err != nil {
			return changed, err
		}
		if len(points) == 0 {
			break
		}

		ids := make([]*qdrant.PointId, len(points))
		for i, p := range points {
			ids[i] = qdrant.NewIDNum(p.ID)
		}

		err = errors.Retry(ctx, s.retry, func() error {
			cctx, cancel := s.callCtx(ctx)
			defer cancel()

			_, err := s.client.SetPayload(cctx, &qdrant.SetPayloadPoints{
				CollectionName: s.collection,
				Payload:        qdrant.NewValueMap(map[string]any{"is_deleted": deleted}),
				PointsSelector: qdrant.NewPointsSelector(ids...),
				Wait:           qdrant.PtrOf(true),
			})
			if err != nil {
				return errors.StoreUnavailable(err).WithDetail("count", len(ids))
			}
			return nil
		})
		if err != nil {
			return changed, err
		}
		changed += len(points)

		if next == 0 {
			break
		}
		cursor = next
	}
	return changed, nil
}

// GetPoints fetches points by id; missing ids are absent from the
// result.
func (s *QdrantStore) GetPoints(ctx context.Context, ids []uint64, withVectors bool) ([]*Point, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDNum(id)
	}

	retrieved, err := errors.RetryWithResult(ctx, s.retry, func() ([]*qdrant.RetrievedPoint, error) {
		cctx, cancel := s.callCtx(ctx)
		defer cancel()

		points, err := s.client.Get(cctx, &qdrant.GetPoints{
			CollectionName: s.collection,
			Ids:            pointIDs,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(withVectors),
		})
		if err != nil {
			return nil, errors.StoreUnavailable(err)
		}
		return points, nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Point, 0, len(retrieved))
	for _, rp := range retrieved {
		out = append(out, &Point{
			ID:      rp.GetId().GetNum(),
			Vector:  vectorsOutputData(rp.GetVectors()),
			Payload: payloadToMap(rp.GetPayload()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Scroll pages matching points in id order. The offset point id makes
// the cursor survive concurrent writes.
func (s *QdrantStore) Scroll(ctx context.Context, f *Filter, cursor uint64, limit int) ([]*Point, uint64, error) {
	if limit <= 0 || limit > MaxBatchSize {
		limit = MaxBatchSize
	}

	req := &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         s.buildFilter(f),
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if cursor > 0 {
		req.Offset = qdrant.NewIDNum(cursor + 1)
	}

	retrieved, err := errors.RetryWithResult(ctx, s.retry, func() ([]*qdrant.RetrievedPoint, error) {
		cctx, cancel := s.callCtx(ctx)
		defer cancel()

		points, err := s.client.Scroll(cctx, req)
		if err != nil {
			return nil, errors.StoreUnavailable(err)
		}
		return points, nil
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]*Point, 0, len(retrieved))
	for _, rp := range retrieved {
		out = append(out, &Point{
			ID:      rp.GetId().GetNum(),
			Payload: payloadToMap(rp.GetPayload()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	next := uint64(0)
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

// Search returns the k nearest active points.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, f *Filter, k int, withVectors bool) ([]*ScoredPoint, error) {
	if k <= 0 {
		return nil, nil
	}

	scored, err := errors.RetryWithResult(ctx, s.retry, func() ([]*qdrant.ScoredPoint, error) {
		cctx, cancel := s.callCtx(ctx)
		defer cancel()

		points, err := s.client.Query(cctx, &qdrant.QueryPoints{
			CollectionName: s.collection,
			Query:          qdrant.NewQuery(vector...),
			Filter:         s.buildFilter(f),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(withVectors),
		})
		if err != nil {
			return nil, errors.StoreUnavailable(err)
		}
		return points, nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*ScoredPoint, 0, len(scored))
	for _, sp := range scored {
		out = append(out, &ScoredPoint{
			Point: Point{
				ID:      sp.GetId().GetNum(),
				Vector:  vectorsOutputData(sp.GetVectors()),
				Payload: payloadToMap(sp.GetPayload()),
			},
			Score: sp.GetScore(),
		})
	}
	// Equal scores order by id so output is deterministic.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Stats counts points split by deletion state.
func (s *QdrantStore) Stats(ctx context.Context) (*CollectionStats, error) {
	count := func(f *qdrant.Filter) (uint64, error) {
		return errors.RetryWithResult(ctx, s.retry, func() (uint64, error) {
			cctx, cancel := s.callCtx(ctx)
			defer cancel()

			n, err := s.client.Count(cctx, &qdrant.CountPoints{
				CollectionName: s.collection,
				Filter:         f,
				Exact:          qdrant.PtrOf(true),
			})
			if err != nil {
				return 0, errors.StoreUnavailable(err)
			}
			return n, nil
		})
	}

	total, err := count(nil)
	if err != nil {
		return nil, err
	}
	deleted, err := count(&qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatchBool("is_deleted", true)},
	})
	if err != nil {
		return nil, err
	}

	return &CollectionStats{
		Total:   int64(total),
		Active:  int64(total - deleted),
		Deleted: int64(deleted),
	}, nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// buildFilter converts the portable filter to Qdrant conditions.
func (s *QdrantStore) buildFilter(f *Filter) *qdrant.Filter {
	var must []*qdrant.Condition

	if f != nil {
		if f.FilePath != "" {
			must = append(must, qdrant.NewMatch("file_path", f.FilePath))
		}
		if f.Section != "" {
			must = append(must, qdrant.NewMatch("section", f.Section))
		}
		if f.Language != "" {
			must = append(must, qdrant.NewMatch("language", f.Language))
		}
		if f.ContentType != "" {
			must = append(must, qdrant.NewMatch("content_type", f.ContentType))
		}
	}

	switch {
	case f != nil && f.DeletedOnly:
		must = append(must, qdrant.NewMatchBool("is_deleted", true))
	case f != nil && f.IncludeDeleted:
		// no deletion condition
	default:
		must = append(must, qdrant.NewMatchBool("is_deleted", false))
	}

	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// payloadToMap converts Qdrant values into plain JSON-typed Go values.
func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		out[key] = valueToAny(value)
	}
	return out
}

func valueToAny(value *qdrant.Value) any {
	switch v := value.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		items := v.ListValue.GetValues()
		list := make([]any, len(items))
		for i, item := range items {
			list[i] = valueToAny(item)
		}
		return list
	case *qdrant.Value_StructValue:
		fields := v.StructValue.GetFields()
		m := make(map[string]any, len(fields))
		for k, item := range fields {
			m[k] = valueToAny(item)
		}
		return m
	default:
		return nil
	}
}

// vectorsOutputData extracts the dense vector from a query response.
func vectorsOutputData(vectors *qdrant.VectorsOutput) []float32 {
	if vectors == nil {
		return nil
	}
	vec := vectors.GetVector()
	if vec == nil {
		return nil
	}
	if dense := vec.GetDense(); dense != nil {
		return dense.GetData()
	}
	// Older servers return the flat form.
	return vec.GetData()
}
