package repository

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/timmy/hearth/internal/index"
	"github.com/timmy/hearth/internal/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	qdrantUpsertBatch = 256
	payloadDocumentID = "document_id"
)

// pointNamespace derives stable point UUIDs from document IDs.
var pointNamespace = uuid.MustParse("6f1f5a4e-9c1b-4b8e-9a57-2f0c6d8e3b10")

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API Key
	VectorDimension int
}

// apiKeyInterceptor creates a unary interceptor that adds API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantIndex is a VectorIndex backed by a Qdrant collection with cosine distance.
// A rebuild drops and recreates the collection; queries and rebuilds are
// serialized the same way as the in-memory index.
type QdrantIndex struct {
	mu              sync.RWMutex
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
	built           bool
	size            int
}

var _ index.VectorIndex = (*QdrantIndex)(nil)

// NewQdrantIndex connects to Qdrant.
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key)
func NewQdrantIndex(cfg *QdrantConnectionConfig) (*QdrantIndex, error) {
	if cfg.VectorDimension <= 0 {
		return nil, fmt.Errorf("qdrant: vector dimension must be positive")
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var opts []grpc.DialOption
	if cfg.UseTLS || cfg.APIKey != "" {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantIndex{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: cfg.VectorDimension,
	}, nil
}

// Close closes the gRPC connection
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

// PointID returns the deterministic point UUID for a document.
func PointID(documentID uint) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(documentID))
	return uuid.NewSHA1(pointNamespace, b[:]).String()
}

func (q *QdrantIndex) recreateCollection(ctx context.Context) error {
	if _, err := q.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: q.collectionName}); err == nil {
		if _, err := q.collectClient.Delete(ctx, &pb.DeleteCollection{CollectionName: q.collectionName}); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
	}

	_, err := q.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(128),
			FullScanThreshold: optionalUint64(10000),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

// Rebuild replaces the collection content with entries.
func (q *QdrantIndex) Rebuild(ctx context.Context, entries []index.Entry) error {
	points := make([]*pb.PointStruct, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		if len(e.Vector) != q.vectorDimension {
			skipped++
			continue
		}
		points = append(points, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(e.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Vector}},
			},
			Payload: map[string]*pb.Value{
				payloadDocumentID: {Kind: &pb.Value_IntegerValue{IntegerValue: int64(e.ID)}},
			},
		})
	}
	if skipped > 0 {
		logger.CtxWarn(ctx, "Skipped %d entries with mismatched embeddings (dimension=%d)", skipped, q.vectorDimension)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.recreateCollection(ctx); err != nil {
		q.built = false
		return err
	}

	wait := true
	for start := 0; start < len(points); start += qdrantUpsertBatch {
		end := start + qdrantUpsertBatch
		if end > len(points) {
			end = len(points)
		}
		_, err := q.pointsClient.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: q.collectionName,
			Wait:           &wait,
			Points:         points[start:end],
		})
		if err != nil {
			q.built = false
			return fmt.Errorf("failed to upsert points: %w", err)
		}
	}

	q.built = true
	q.size = len(points)
	return nil
}

// Query returns the k nearest documents. Qdrant reports cosine similarity as
// the score; it is converted to distance so callers see the same metric as
// the in-memory index.
func (q *QdrantIndex) Query(ctx context.Context, vector []float32, k int) ([]index.Hit, error) {
	if k <= 0 {
		return []index.Hit{}, nil
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.size == 0 {
		return []index.Hit{}, nil
	}

	resp, err := q.pointsClient.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collectionName,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]index.Hit, 0, len(resp.GetResult()))
	for _, scored := range resp.GetResult() {
		v, ok := scored.GetPayload()[payloadDocumentID]
		if !ok {
			continue
		}
		hits = append(hits, index.Hit{
			ID:       uint(v.GetIntegerValue()),
			Distance: 1 - float64(scored.GetScore()),
		})
	}
	index.SortHits(hits)
	return hits, nil
}

// Built reports whether Rebuild has completed successfully.
func (q *QdrantIndex) Built() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.built
}

// Len returns the number of points written by the last rebuild.
func (q *QdrantIndex) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}
