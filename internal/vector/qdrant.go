package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	payloadDocID      = "doc_id"
	payloadChunkIndex = "chunk_index"
	payloadText       = "text"
)

// QdrantStore keeps a collection in a Qdrant server over gRPC.
type QdrantStore struct {
	conn          *grpc.ClientConn
	ownsConn      bool
	collections   pb.CollectionsClient
	points        pb.PointsClient
	collection    string
	dimension     int
	metric        Metric
	index         IndexParams
	searchEf      int
	maxRetries    int
	retryInterval time.Duration
	logger        *zap.Logger
}

// NewQdrantStore connects to host:port and provisions the collection.
func NewQdrantStore(ctx context.Context, opts Options) (*QdrantStore, error) {
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	s, err := NewQdrantStoreWithConn(ctx, conn, opts)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.ownsConn = true
	return s, nil
}

// NewQdrantStoreWithConn provisions the collection over an existing connection.
// The caller keeps ownership of conn.
func NewQdrantStoreWithConn(ctx context.Context, conn *grpc.ClientConn, opts Options) (*QdrantStore, error) {
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &QdrantStore{
		conn:          conn,
		collections:   pb.NewCollectionsClient(conn),
		points:        pb.NewPointsClient(conn),
		collection:    opts.Collection,
		dimension:     opts.Dimension,
		metric:        opts.Metric,
		index:         opts.Index,
		searchEf:      opts.SearchEf,
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
		logger:        logger,
	}
	if s.metric == "" {
		s.metric = MetricCosine
	}
	if s.searchEf <= 0 {
		s.searchEf = DefaultSearchEf
	}
	if err := s.provision(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// provision creates the collection and the doc_id payload index when missing.
// Qdrant collections are searchable as soon as they exist, so there is no load step.
func (s *QdrantStore) provision(ctx context.Context) error {
	exists, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: s.collection})
	if err != nil {
		return fmt.Errorf("qdrant collection exists %s: %w", s.collection, err)
	}

	if !exists.GetResult().GetExists() {
		m := uint64(s.index.M)
		ef := uint64(s.index.EfConstruction)
		_, err := s.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
				Size:     uint64(s.dimension),
				Distance: toDistance(s.metric),
			}}},
			HnswConfig: &pb.HnswConfigDiff{M: &m, EfConstruct: &ef},
		})
		if err != nil {
			return fmt.Errorf("qdrant create collection %s: %w", s.collection, err)
		}
		s.logger.Info("created collection",
			zap.String("collection", s.collection),
			zap.Int("dimension", s.dimension),
			zap.String("metric", string(s.metric)))
	}

	info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err != nil {
		return fmt.Errorf("qdrant get collection %s: %w", s.collection, err)
	}
	params := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams()
	if size := int(params.GetSize()); size != s.dimension {
		return fmt.Errorf("%w: collection %s has dimension %d, embedder produces %d",
			ErrDimensionMismatch, s.collection, size, s.dimension)
	}
	if existing := fromDistance(params.GetDistance()); existing != s.metric {
		s.logger.Warn("collection exists with a different metric, reusing it",
			zap.String("collection", s.collection),
			zap.String("existing", string(existing)),
			zap.String("requested", string(s.metric)))
		s.metric = existing
	}
	if hnsw := info.GetResult().GetConfig().GetHnswConfig(); hnsw != nil {
		s.index = IndexParams{Type: "HNSW", M: int(hnsw.GetM()), EfConstruction: int(hnsw.GetEfConstruct())}
	}

	if _, ok := info.GetResult().GetPayloadSchema()[payloadDocID]; !ok {
		wait := true
		_, err := s.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: s.collection,
			Wait:           &wait,
			FieldName:      payloadDocID,
			FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("qdrant create %s index: %w", payloadDocID, err)
		}
	}
	return nil
}

func (s *QdrantStore) Collection() string { return s.collection }
func (s *QdrantStore) Dimension() int     { return s.dimension }
func (s *QdrantStore) Metric() Metric     { return s.metric }

// Upsert writes all chunks in one call and waits until they are searchable.
func (s *QdrantStore) Upsert(ctx context.Context, docID string, chunks []Chunk) (int, error) {
	if err := validateChunks(s.dimension, docID, chunks); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	// IDs are fixed before the first attempt so a retried call overwrites instead of duplicating.
	points := make([]*pb.PointStruct, len(chunks))
	for i, ch := range chunks {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewString()}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: ch.Embedding}}},
			Payload: map[string]*pb.Value{
				payloadDocID:      {Kind: &pb.Value_StringValue{StringValue: docID}},
				payloadChunkIndex: {Kind: &pb.Value_IntegerValue{IntegerValue: int64(ch.Index)}},
				payloadText:       {Kind: &pb.Value_StringValue{StringValue: ch.Text}},
			},
		}
	}
	wait := true
	_, err := withRetry(ctx, s.maxRetries, s.retryInterval, s.logger, "upsert", func() (*pb.PointsOperationResponse, error) {
		return s.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: s.collection,
			Wait:           &wait,
			Points:         points,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant upsert %s: %w", docID, err)
	}
	return len(points), nil
}

// DeleteByDocID counts the rows of docID and then deletes them. The count is
// not atomic with the delete when other writers touch the same document.
func (s *QdrantStore) DeleteByDocID(ctx context.Context, docID string) (int64, error) {
	n, err := s.countPoints(ctx, docFilter(docID))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	wait := true
	_, err = withRetry(ctx, s.maxRetries, s.retryInterval, s.logger, "delete", func() (*pb.PointsOperationResponse, error) {
		return s.points.Delete(ctx, &pb.DeletePoints{
			CollectionName: s.collection,
			Wait:           &wait,
			Points:         &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: docFilter(docID)}},
		})
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant delete %s: %w", docID, err)
	}
	return n, nil
}

// Search runs an HNSW search with the request ef, or the store default.
func (s *QdrantStore) Search(ctx context.Context, query []float32, req SearchRequest) ([]Hit, error) {
	if err := validateSearch(s.dimension, query, req); err != nil {
		return nil, err
	}
	if req.TopK == 0 {
		return []Hit{}, nil
	}
	ef := uint64(s.searchEf)
	if req.Ef > 0 {
		ef = uint64(req.Ef)
	}
	search := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         query,
		Limit:          uint64(req.TopK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Params:         &pb.SearchParams{HnswEf: &ef},
	}
	if req.DocID != "" {
		search.Filter = docFilter(req.DocID)
	}
	resp, err := withRetry(ctx, s.maxRetries, s.retryInterval, s.logger, "search", func() (*pb.SearchResponse, error) {
		return s.points.Search(ctx, search)
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	hits := make([]Hit, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		score := float64(pt.GetScore())
		if s.metric == MetricL2 {
			score = distanceToScore(score)
		}
		payload := pt.GetPayload()
		hits = append(hits, Hit{
			Score:      score,
			DocID:      payload[payloadDocID].GetStringValue(),
			ChunkIndex: int(payload[payloadChunkIndex].GetIntegerValue()),
			Text:       payload[payloadText].GetStringValue(),
		})
	}
	return hits, nil
}

// Count returns the exact number of points for docID, or of the whole collection.
func (s *QdrantStore) Count(ctx context.Context, docID string) (int64, error) {
	if docID == "" {
		return s.countPoints(ctx, nil)
	}
	return s.countPoints(ctx, docFilter(docID))
}

// countPoints counts the points matching filter, or every point when filter is nil.
func (s *QdrantStore) countPoints(ctx context.Context, filter *pb.Filter) (int64, error) {
	exact := true
	req := &pb.CountPoints{CollectionName: s.collection, Exact: &exact, Filter: filter}
	resp, err := withRetry(ctx, s.maxRetries, s.retryInterval, s.logger, "count", func() (*pb.CountResponse, error) {
		return s.points.Count(ctx, req)
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int64(resp.GetResult().GetCount()), nil
}

func (s *QdrantStore) Describe(ctx context.Context) (*CollectionInfo, error) {
	rows, err := s.Count(ctx, "")
	if err != nil {
		return nil, err
	}
	return &CollectionInfo{
		Name:      s.collection,
		Dimension: s.dimension,
		Metric:    s.metric,
		Index:     s.index,
		Rows:      rows,
	}, nil
}

// Close closes the connection when the store dialed it.
func (s *QdrantStore) Close() error {
	if !s.ownsConn {
		return nil
	}
	return s.conn.Close()
}

func docFilter(docID string) *pb.Filter {
	return &pb.Filter{Must: []*pb.Condition{{
		ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
			Key:   payloadDocID,
			Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: docID}},
		}},
	}}}
}

func toDistance(m Metric) pb.Distance {
	switch m {
	case MetricInnerProduct:
		return pb.Distance_Dot
	case MetricL2:
		return pb.Distance_Euclid
	default:
		return pb.Distance_Cosine
	}
}

func fromDistance(d pb.Distance) Metric {
	switch d {
	case pb.Distance_Dot:
		return MetricInnerProduct
	case pb.Distance_Euclid:
		return MetricL2
	default:
		return MetricCosine
	}
}
