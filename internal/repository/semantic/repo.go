// Package semantic adapts Qdrant as the dense-vector retrieval backend,
// queried at two granularities: an article-level collection and a chunk-level
// collection whose payloads reference the parent article.
package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/khoj-labs/khoj/internal/domain/facet"
	searchuc "github.com/khoj-labs/khoj/internal/usecase/search"
)

// Compile-time check: Repo implements the semantic backend contract.
var _ searchuc.SemanticBackend = (*Repo)(nil)

// Payload field names in the chunk collection.
const (
	payloadArticleID = "article_id"
	payloadChunkID   = "chunk_id"
	payloadChunkText = "chunk_text"
)

// Config holds connection and collection settings.
type Config struct {
	Addr              string
	ArticleCollection string
	ChunkCollection   string
}

// Repo is the sole owner of all Qdrant operations.
type Repo struct {
	conn   *grpc.ClientConn
	points pb.PointsClient
	config Config
}

// New creates a Repo connected to Qdrant at the given gRPC address.
func New(cfg Config) (*Repo, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("addr is required")
	}
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", cfg.Addr, err)
	}
	return &Repo{
		conn:   conn,
		points: pb.NewPointsClient(conn),
		config: cfg,
	}, nil
}

// Close closes the underlying gRPC connection.
func (r *Repo) Close() error {
	return r.conn.Close()
}

// SearchArticles runs KNN over the article-level collection. Point ids are
// article ids.
func (r *Repo) SearchArticles(
	ctx context.Context, vector []float32, f facet.Filter, topK int,
) ([]searchuc.ArticleHit, error) {
	req := &pb.SearchPoints{
		CollectionName: r.config.ArticleCollection,
		Vector:         vector,
		Limit:          uint64(topK),
	}
	if flt := buildFilter(f); flt != nil {
		req.Filter = flt
	}

	resp, err := r.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}

	hits := make([]searchuc.ArticleHit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		hits = append(hits, searchuc.ArticleHit{
			ArticleID: pointID(p.GetId()),
			Score:     float64(p.GetScore()),
		})
	}
	return hits, nil
}

// SearchChunks runs KNN over the chunk-level collection, reading the parent
// article reference and chunk text from point payloads.
func (r *Repo) SearchChunks(
	ctx context.Context, vector []float32, f facet.Filter, topK int,
) ([]searchuc.ChunkHit, error) {
	req := &pb.SearchPoints{
		CollectionName: r.config.ChunkCollection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if flt := buildFilter(f); flt != nil {
		req.Filter = flt
	}

	resp, err := r.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	hits := make([]searchuc.ChunkHit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		payload := p.GetPayload()
		articleID := payload[payloadArticleID].GetStringValue()
		chunkID := payload[payloadChunkID].GetStringValue()
		if chunkID == "" {
			chunkID = pointID(p.GetId())
		}
		// Chunk hits without a parent reference cannot be aggregated.
		if articleID == "" {
			continue
		}
		hits = append(hits, searchuc.ChunkHit{
			ChunkID:   chunkID,
			ArticleID: articleID,
			Score:     float64(p.GetScore()),
			Text:      payload[payloadChunkText].GetStringValue(),
		})
	}
	return hits, nil
}

// buildFilter maps facet values onto payload keyword conditions. Values within
// a facet are OR-ed via a keywords match; facets are AND-ed under Must.
func buildFilter(f facet.Filter) *pb.Filter {
	if f.IsEmpty() {
		return nil
	}
	var must []*pb.Condition
	for _, group := range []struct {
		key    string
		values []string
	}{
		{"locations", f.Locations},
		{"categories", f.Categories},
		{"tags", f.Tags},
		{"contributors", f.Contributors},
	} {
		if len(group.values) == 0 {
			continue
		}
		must = append(must, fieldMatchAny(group.key, group.values))
	}
	return &pb.Filter{Must: must}
}

func fieldMatchAny(key string, values []string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keywords{
						Keywords: &pb.RepeatedStrings{Strings: values},
					},
				},
			},
		},
	}
}

func pointID(id *pb.PointId) string {
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}
