package knowledge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Payload fields.
const (
	fieldID      = "id"
	fieldURL     = "url"
	fieldTitle   = "title"
	fieldContent = "content"
	fieldChunk   = "chunk"
)

var pointNamespace = uuid.MustParse("6f1c7d52-3a0e-4b8e-9d4f-2b7a1c9e5d30")

// VectorStore stores embedded documents and finds the nearest ones.
type VectorStore interface {
	Upsert(ctx context.Context, docs []Document, vectors [][]float64) error
	Search(ctx context.Context, vector []float64, limit int) ([]ScoredDocument, error)
	Close() error
}

// qdrantClient is the part of *qdrant.Client the store uses.
type qdrantClient interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// QdrantConfig addresses a Qdrant collection over gRPC.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimensions int
}

// QdrantStore is a VectorStore on one Qdrant collection with cosine
// distance.
type QdrantStore struct {
	client     qdrantClient
	collection string
	dimensions int
}

// NewQdrantStore connects and creates the collection when missing.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	s, err := newQdrantStore(ctx, client, cfg.Collection, cfg.Dimensions)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

func newQdrantStore(ctx context.Context, client qdrantClient, collection string, dims int) (*QdrantStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", dims)
	}
	s := &QdrantStore{client: client, collection: collection, dimensions: dims}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("check collection %q exists: %w", collection, err)
	}
	if exists {
		return s, nil
	}
	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("create collection %q: %w", collection, err)
	}
	return s, nil
}

// Close closes the connection.
func (s *QdrantStore) Close() error { return s.client.Close() }

// Upsert implements VectorStore.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("upsert: %d documents but %d vectors", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, d := range docs {
		if len(vectors[i]) != s.dimensions {
			return fmt.Errorf("upsert %s: expected %d dimensions, got %d", d.ID, s.dimensions, len(vectors[i]))
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.NewSHA1(pointNamespace, []byte(d.ID)).String()),
			Vectors: qdrant.NewVectors(toFloat32(vectors[i])...),
			Payload: qdrant.NewValueMap(map[string]any{
				fieldID:      d.ID,
				fieldURL:     d.URL,
				fieldTitle:   d.Title,
				fieldContent: d.Content,
				fieldChunk:   int64(d.Chunk),
			}),
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("upsert %d points to %q: %w", len(points), s.collection, err)
	}
	return nil
}

// Search implements VectorStore.
func (s *QdrantStore) Search(ctx context.Context, vector []float64, limit int) ([]ScoredDocument, error) {
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("search: expected %d dimensions, got %d", s.dimensions, len(vector))
	}
	if limit <= 0 {
		limit = 5
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(toFloat32(vector)...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", s.collection, err)
	}
	out := make([]ScoredDocument, 0, len(points))
	for _, p := range points {
		out = append(out, ScoredDocument{
			Document: Document{
				ID:      payloadString(p.Payload, fieldID),
				URL:     payloadString(p.Payload, fieldURL),
				Title:   payloadString(p.Payload, fieldTitle),
				Content: payloadString(p.Payload, fieldContent),
				Chunk:   int(payloadInt(p.Payload, fieldChunk)),
			},
			Score: float64(p.Score),
		})
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func payloadString(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok && v != nil {
		if s, ok := v.Kind.(*qdrant.Value_StringValue); ok {
			return s.StringValue
		}
	}
	return ""
}

func payloadInt(payload map[string]*qdrant.Value, key string) int64 {
	if v, ok := payload[key]; ok && v != nil {
		switch k := v.Kind.(type) {
		case *qdrant.Value_IntegerValue:
			return k.IntegerValue
		case *qdrant.Value_DoubleValue:
			return int64(k.DoubleValue)
		}
	}
	return 0
}
