package repository

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/rowan/attest/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	defaultVectorDimension = 1024
)

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

// QdrantRepository handles nearest-neighbor operations over claim vectors.
// Each claim is one point; the payload carries the fields the matcher filters
// and returns, so a search never needs a follow-up row read.
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantRepository creates a new QdrantRepository
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key)
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	// Build gRPC dial options
	var opts []grpc.DialOption

	// TLS is enabled if: APIKey is set OR UseTLS is explicitly true
	useTLS := cfg.UseTLS || cfg.APIKey != ""

	if useTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		creds := credentials.NewTLS(tlsConfig)
		opts = append(opts, grpc.WithTransportCredentials(creds))

		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		// Local mode: no TLS, no authentication
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}, nil
}

// Close closes the gRPC connection
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// EnsureCollection creates the claims collection if it doesn't exist
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok {
			if size != uint64(r.vectorDimension) {
				return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
			}
		}
		return nil // Collection exists
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

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	if info == nil {
		return 0, false
	}

	config := info.GetConfig()
	if config == nil {
		return 0, false
	}

	params := config.GetParams()
	if params == nil {
		return 0, false
	}

	vectors := params.GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}

	if single := vectors.GetParams(); single != nil {
		if size := single.GetSize(); size > 0 {
			return size, true
		}
	}

	if paramsMap := vectors.GetParamsMap(); paramsMap != nil {
		for _, vectorParams := range paramsMap.GetMap() {
			if vectorParams == nil {
				continue
			}
			if size := vectorParams.GetSize(); size > 0 {
				return size, true
			}
		}
	}

	return 0, false
}

// ClaimPayload represents the payload stored with each claim vector
type ClaimPayload struct {
	ClaimID    string  `json:"claim_id"`
	OwnerID    string  `json:"owner_id"`
	ClaimType  string  `json:"claim_type"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// UpsertClaim inserts or updates a claim vector with payload
func (r *QdrantRepository) UpsertClaim(ctx context.Context, claimID string, vector []float32, payload *ClaimPayload) error {
	uid, err := uuid.Parse(claimID)
	if err != nil {
		return fmt.Errorf("invalid point ID: %w", err)
	}

	points := []*pb.PointStruct{
		{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{
					Uuid: uid.String(),
				},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{
						Data: vector,
					},
				},
			},
			Payload: map[string]*pb.Value{
				"claim_id":   {Kind: &pb.Value_StringValue{StringValue: payload.ClaimID}},
				"owner_id":   {Kind: &pb.Value_StringValue{StringValue: payload.OwnerID}},
				"claim_type": {Kind: &pb.Value_StringValue{StringValue: payload.ClaimType}},
				"label":      {Kind: &pb.Value_StringValue{StringValue: payload.Label}},
				"confidence": {Kind: &pb.Value_DoubleValue{DoubleValue: payload.Confidence}},
			},
		},
	}

	_, err = r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	return nil
}

// UpdateConfidence patches the confidence payload field on an existing claim
// point without rewriting its vector.
func (r *QdrantRepository) UpdateConfidence(ctx context.Context, claimID string, confidence float64) error {
	uid, err := uuid.Parse(claimID)
	if err != nil {
		return fmt.Errorf("invalid point ID: %w", err)
	}

	_, err = r.pointsClient.SetPayload(ctx, &pb.SetPayloadPoints{
		CollectionName: r.collectionName,
		Payload: map[string]*pb.Value{
			"confidence": {Kind: &pb.Value_DoubleValue{DoubleValue: confidence}},
		},
		PointsSelector: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{
						{PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to set payload: %w", err)
	}

	return nil
}

// ClaimSearchResult represents a claim returned by vector search
type ClaimSearchResult struct {
	ID      string
	Score   float32
	Payload *ClaimPayload
}

// SearchClaims performs a vector similarity search over one owner's claims,
// restricted to the given claim types (empty means all types).
func (r *QdrantRepository) SearchClaims(ctx context.Context, ownerID string, vector []float32, types []domain.ClaimType, topK int) ([]ClaimSearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		Filter: buildClaimFilter(ownerID, types),
	}

	resp, err := r.pointsClient.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]ClaimSearchResult, len(resp.Result))
	for i, scored := range resp.Result {
		results[i] = ClaimSearchResult{
			ID:      scored.Id.GetUuid(),
			Score:   scored.Score,
			Payload: parseClaimPayload(scored.Payload),
		}
	}

	return results, nil
}

func buildClaimFilter(ownerID string, types []domain.ClaimType) *pb.Filter {
	conditions := []*pb.Condition{
		{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: "owner_id",
					Match: &pb.Match{
						MatchValue: &pb.Match_Keyword{Keyword: ownerID},
					},
				},
			},
		},
	}

	if len(types) > 0 {
		keywords := make([]string, len(types))
		for i, t := range types {
			keywords[i] = string(t)
		}
		conditions = append(conditions, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: "claim_type",
					Match: &pb.Match{
						MatchValue: &pb.Match_Keywords{
							Keywords: &pb.RepeatedStrings{Strings: keywords},
						},
					},
				},
			},
		})
	}

	return &pb.Filter{
		Must: conditions,
	}
}

func parseClaimPayload(payload map[string]*pb.Value) *ClaimPayload {
	if payload == nil {
		return nil
	}

	p := &ClaimPayload{}
	if v, ok := payload["claim_id"]; ok {
		p.ClaimID = v.GetStringValue()
	}
	if v, ok := payload["owner_id"]; ok {
		p.OwnerID = v.GetStringValue()
	}
	if v, ok := payload["claim_type"]; ok {
		p.ClaimType = v.GetStringValue()
	}
	if v, ok := payload["label"]; ok {
		p.Label = v.GetStringValue()
	}
	if v, ok := payload["confidence"]; ok {
		p.Confidence = v.GetDoubleValue()
	}

	return p
}

// Delete deletes a claim point by ID
func (r *QdrantRepository) Delete(ctx context.Context, claimID string) error {
	uid, err := uuid.Parse(claimID)
	if err != nil {
		return fmt.Errorf("invalid point ID: %w", err)
	}

	_, err = r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collectionName,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{
						{PointIdOptions: &pb.PointId_Uuid{Uuid: uid.String()}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}

	return nil
}
