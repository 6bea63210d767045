package vectorstore

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantBackend adapts the milvus-equivalent Backend contract onto a real
// github.com/qdrant/go-client client, following the pack's
// providers/vectorstores/qdrant/store.go conventions (NewID/NewVectors,
// CollectionExists+CreateCollection, Upsert/Query/Delete).
type QdrantBackend struct {
	client *qdrant.Client
}

// NewQdrantBackend wraps an already-connected Qdrant client.
func NewQdrantBackend(client *qdrant.Client) *QdrantBackend {
	return &QdrantBackend{client: client}
}

func (q *QdrantBackend) CreateCollection(ctx context.Context, name string, dim int) error {
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (q *QdrantBackend) DropCollection(ctx context.Context, name string) error {
	err := q.client.DeleteCollection(ctx, name)
	if err != nil && isQdrantNotFound(err) {
		return nil // idempotent double-drop, per C17's tolerance requirement
	}
	return err
}

func (q *QdrantBackend) Insert(ctx context.Context, collection string, items []Item, upsert bool) ([]string, error) {
	points := make([]*qdrant.PointStruct, 0, len(items))
	ids := make([]string, 0, len(items))

	for _, item := range items {
		id := item.ID
		if id == "" || !upsert {
			if id == "" {
				id = uuid.NewString()
			}
		}
		payload, err := qdrant.TryValueMap(item.Metadata)
		if err != nil {
			return nil, err
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(item.Embedding...),
			Payload: payload,
		})
		ids = append(ids, id)
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (q *QdrantBackend) Update(ctx context.Context, collection string, items []Item) error {
	_, err := q.Insert(ctx, collection, items, true)
	return err
}

func (q *QdrantBackend) Delete(ctx context.Context, collection string, ids []string) error {
	pbIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pbIDs[i] = qdrant.NewID(id)
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pbIDs},
			},
		},
	})
	return err
}

func (q *QdrantBackend) Search(ctx context.Context, collection string, embedding []float32, topK int) ([]Match, error) {
	limit := uint64(topK)
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	return scoredPointsToMatches(scored), nil
}

func scoredPointsToMatches(scored []*qdrant.ScoredPoint) []Match {
	matches := make([]Match, 0, len(scored))
	for _, p := range scored {
		m := Match{Score: float64(p.GetScore()), ID: pointIDToString(p.GetId())}
		m.Metadata = payloadToMetadata(p.GetPayload())
		matches = append(matches, m)
	}
	return matches
}

func pointIDToString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uid := id.GetUuid(); uid != "" {
		return uid
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func payloadToMetadata(payload map[string]*qdrant.Value) map[string]interface{} {
	if payload == nil {
		return nil
	}
	meta := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		meta[k] = qdrantValueToAny(v)
	}
	return meta
}

func qdrantValueToAny(v *qdrant.Value) interface{} {
	if v == nil {
		return nil
	}
	switch kind := v.Kind.(type) {
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		out := make(map[string]interface{}, len(kind.StructValue.Fields))
		for k, f := range kind.StructValue.Fields {
			out[k] = qdrantValueToAny(f)
		}
		return out
	case *qdrant.Value_ListValue:
		out := make([]interface{}, len(kind.ListValue.Values))
		for i, f := range kind.ListValue.Values {
			out[i] = qdrantValueToAny(f)
		}
		return out
	default:
		return nil
	}
}

func isQdrantNotFound(err error) bool {
	// the generated client surfaces gRPC NotFound as a status error;
	// string-matching here keeps this adapter independent of the exact
	// grpc/status import the generated client uses internally.
	return err != nil && (contains(err.Error(), "not found") || contains(err.Error(), "doesn't exist"))
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
