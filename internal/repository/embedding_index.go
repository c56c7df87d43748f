package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/refind-app/refind/internal/domain"
)

const defaultVectorDimension = 768

// EmbeddingIndexConfig holds configuration for the Qdrant connection.
type EmbeddingIndexConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API key (enables TLS automatically)
	UseTLS          bool   // explicitly enable TLS without an API key
	VectorDimension int
}

// apiKeyInterceptor creates a unary interceptor that adds the API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// EmbeddingIndex stores one pooled visual embedding per item in Qdrant and
// answers nearest-neighbour shortlist queries against one item-type pool.
// It is an optional collaborator: the matcher works on the full pool when
// the index is absent.
type EmbeddingIndex struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewEmbeddingIndex creates an EmbeddingIndex.
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API key).
// Parameters:
//   - cfg: connection and collection configuration.
// Returns:
//   - *EmbeddingIndex: initialized index client.
//   - error: non-nil if the gRPC client cannot be created.
func NewEmbeddingIndex(cfg *EmbeddingIndexConfig) (*EmbeddingIndex, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	var opts []grpc.DialOption

	useTLS := cfg.UseTLS || cfg.APIKey != ""
	if useTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
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

	return &EmbeddingIndex{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}, nil
}

// Close closes the gRPC connection.
func (r *EmbeddingIndex) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (r *EmbeddingIndex) EnsureCollection(ctx context.Context) error {
	_, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// UpsertItem inserts or replaces the pooled visual embedding for an item.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - itemID: item primary key, used as the point ID.
//   - itemType: pool tag stored in the payload for filtered search.
//   - vector: pooled visual embedding.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *EmbeddingIndex) UpsertItem(ctx context.Context, itemID uint, itemType domain.ItemType, vector []float32) error {
	points := []*pb.PointStruct{
		{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Num{Num: uint64(itemID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vector},
				},
			},
			Payload: map[string]*pb.Value{
				"item_id":   {Kind: &pb.Value_IntegerValue{IntegerValue: int64(itemID)}},
				"item_type": {Kind: &pb.Value_StringValue{StringValue: string(itemType)}},
			},
		},
	}

	_, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

// Shortlist returns the IDs of the items in the given pool whose stored
// embeddings are nearest to the query vector.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - vector: query item's pooled visual embedding.
//   - itemType: pool to search within.
//   - limit: maximum IDs to return.
// Returns:
//   - []uint: item IDs ordered by descending similarity.
//   - error: non-nil if the search fails.
func (r *EmbeddingIndex) Shortlist(ctx context.Context, vector []float32, itemType domain.ItemType, limit int) ([]uint, error) {
	req := &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(limit),
		Filter: &pb.Filter{
			Must: []*pb.Condition{
				{
					ConditionOneOf: &pb.Condition_Field{
						Field: &pb.FieldCondition{
							Key: "item_type",
							Match: &pb.Match{
								MatchValue: &pb.Match_Keyword{Keyword: string(itemType)},
							},
						},
					},
				},
			},
		},
	}

	resp, err := r.pointsClient.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	ids := make([]uint, 0, len(resp.Result))
	for _, scored := range resp.Result {
		ids = append(ids, uint(scored.Id.GetNum()))
	}
	return ids, nil
}
