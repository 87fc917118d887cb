package databases

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"rook/internal/ports"
)

// PAYLOAD_ID_FIELD stashes the caller-supplied ID in the point payload.
// Qdrant only accepts UUIDs or positive integers as point IDs, so any
// non-UUID ID is mapped to a deterministic UUID derived from it.
const PAYLOAD_ID_FIELD = "_original_id"

type qdrantVector struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string // cosine|l2|euclidean|ip|dot|manhattan
}

// NewQdrantVector opens a Qdrant-backed ports.VectorStore.
//
// Note: the Go client talks Qdrant's gRPC API, which runs on port 6334 by
// default. An API key can be supplied as a query parameter:
// "http://localhost:6334?api_key=your_api_key".
func NewQdrantVector(dsn string, collection string, dimensions int, metric string) (ports.VectorStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	parsedURL, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse Qdrant DSN: %w", err)
	}
	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsedURL.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in Qdrant DSN: %w", err)
	}
	config := &qdrant.Config{Host: host, Port: portNum}
	if parsedURL.Scheme == "https" {
		config.UseTLS = true
	}
	if apiKey := parsedURL.Query().Get("api_key"); apiKey != "" {
		config.APIKey = apiKey
	}
	client, err := qdrant.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("create Qdrant client: %w", err)
	}
	qv := &qdrantVector{
		client:     client,
		collection: collection,
		dimension:  dimensions,
		metric:     strings.ToLower(strings.TrimSpace(metric)),
	}
	ctx := context.Background()
	if err := qv.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return qv, nil
}

func (q *qdrantVector) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	return q.createCollectionLocked(ctx, q.dimension)
}

func (q *qdrantVector) createCollectionLocked(ctx context.Context, dimensions int) error {
	var distance qdrant.Distance
	switch q.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	if dimensions <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: distance,
		}),
	})
}

func (q *qdrantVector) CreateCollection(ctx context.Context, name string, dimensions int) error {
	q.collection = name
	q.dimension = dimensions
	return q.ensureCollection(ctx)
}

func withVectorsEnabled() *qdrant.WithVectorsSelector {
	return &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: true}}
}

func pointIDFor(id string) (uuidStr string, isMapped bool) {
	if _, err := uuid.Parse(id); err == nil {
		return id, false
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(), true
}

func (q *qdrantVector) Insert(ctx context.Context, records []ports.VectorRecord) error {
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		uuidStr, mapped := pointIDFor(r.ID)
		payloadAny := make(map[string]any, len(r.Payload)+1)
		for k, v := range r.Payload {
			payloadAny[k] = v
		}
		if mapped {
			payloadAny[PAYLOAD_ID_FIELD] = r.ID
		}
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuidStr),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payloadAny),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: q.collection, Points: points})
	return err
}

func (q *qdrantVector) Update(ctx context.Context, id string, vector []float32, payload map[string]any) error {
	return q.Insert(ctx, []ports.VectorRecord{{ID: id, Vector: vector, Payload: payload}})
}

func (q *qdrantVector) Delete(ctx context.Context, id string) error {
	uuidStr, _ := pointIDFor(id)
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(uuidStr)),
	})
	return err
}

func (q *qdrantVector) Get(ctx context.Context, id string) (ports.VectorRecord, bool, error) {
	uuidStr, _ := pointIDFor(id)
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(uuidStr)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    withVectorsEnabled(),
	})
	if err != nil {
		return ports.VectorRecord{}, false, err
	}
	if len(points) == 0 {
		return ports.VectorRecord{}, false, nil
	}
	return pointToRecord(points[0].Id, points[0].Payload, points[0].Vectors), true, nil
}

func pointToRecord(pointID *qdrant.PointId, payload map[string]*qdrant.Value, vectors *qdrant.VectorsOutput) ports.VectorRecord {
	md := make(map[string]any, len(payload))
	var originalID string
	for k, v := range payload {
		if k == PAYLOAD_ID_FIELD {
			originalID = v.GetStringValue()
			continue
		}
		md[k] = qdrantValueToAny(v)
	}
	id := originalID
	if id == "" {
		if uuidStr := pointID.GetUuid(); uuidStr != "" {
			id = uuidStr
		} else {
			id = pointID.String()
		}
	}
	var vec []float32
	if vectors != nil {
		if dense := vectors.GetVector(); dense != nil {
			vec = dense.GetData()
		}
	}
	return ports.VectorRecord{ID: id, Vector: vec, Payload: md}
}

func qdrantValueToAny(v *qdrant.Value) any {
	switch v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return v.GetStringValue()
	case *qdrant.Value_IntegerValue:
		return v.GetIntegerValue()
	case *qdrant.Value_DoubleValue:
		return v.GetDoubleValue()
	case *qdrant.Value_BoolValue:
		return v.GetBoolValue()
	default:
		return v.GetStringValue()
	}
}

func (q *qdrantVector) Search(ctx context.Context, vector []float32, limit int, filter *ports.Filter) ([]ports.VectorSearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	qdrantFilter := filterToQdrant(filter)
	fetchLimit := uint64(limit)
	searchResult, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &fetchLimit,
		Filter:         qdrantFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	out := make([]ports.VectorSearchResult, 0, len(searchResult))
	for _, hit := range searchResult {
		rec := pointToRecord(hit.Id, hit.Payload, nil)
		out = append(out, ports.VectorSearchResult{ID: rec.ID, Score: float64(hit.Score), Payload: rec.Payload})
	}
	return out, nil
}

// filterToQdrant translates the flat equality/in portion of a ports.Filter
// tree into a native Qdrant filter. Richer grammar (ranges, wildcards,
// negation) falls back to no server-side filter; callers needing exact
// semantics for those should prefer the memory or Postgres backend.
func filterToQdrant(f *ports.Filter) *qdrant.Filter {
	if f == nil || f.Kind == "" {
		return nil
	}
	if f.Kind == "condition" && f.Op == ports.OpEq {
		return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch(f.Field, fmt.Sprint(f.Value))}}
	}
	if f.Kind == "and" {
		must := make([]*qdrant.Condition, 0, len(f.Filters))
		for _, sub := range f.Filters {
			if sub.Kind == "condition" && sub.Op == ports.OpEq {
				must = append(must, qdrant.NewMatch(sub.Field, fmt.Sprint(sub.Value)))
			}
		}
		if len(must) == len(f.Filters) && len(must) > 0 {
			return &qdrant.Filter{Must: must}
		}
	}
	return nil
}

func (q *qdrantVector) List(ctx context.Context, filter *ports.Filter, limit int) ([]ports.VectorRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	lim := uint32(limit)
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    withVectorsEnabled(),
	})
	if err != nil {
		return nil, err
	}
	out := make([]ports.VectorRecord, 0, len(points))
	for _, p := range points {
		rec := pointToRecord(p.Id, p.Payload, p.Vectors)
		if !evaluateFilter(filter, rec.Payload) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (q *qdrantVector) DeleteCollection(ctx context.Context, name string) error {
	return q.client.DeleteCollection(ctx, name)
}

func (q *qdrantVector) CollectionInfo(ctx context.Context, name string) (ports.CollectionInfo, error) {
	info, err := q.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return ports.CollectionInfo{}, err
	}
	count := 0
	if info.GetPointsCount() > 0 {
		count = int(info.GetPointsCount())
	}
	return ports.CollectionInfo{Name: name, Dimensions: q.dimension, Count: count}, nil
}

func (q *qdrantVector) Reset(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return err
	}
	return q.createCollectionLocked(ctx, q.dimension)
}

func (q *qdrantVector) CollectionName() string { return q.collection }

func (q *qdrantVector) Close() {
	_ = q.client.Close()
}
