package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
)

// MongoConfig locates the conversations collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// recordDocument is the stored form of a record; the driver assigns _id.
type recordDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	model.Record `bson:",inline"`
}

func (d *recordDocument) toRecord() model.Record {
	rec := d.Record
	rec.ID = d.ID.Hex()
	return rec
}

// reconnectInterval bounds how often a disconnected store dials again.
const reconnectInterval = 5 * time.Second

// dialFunc opens a verified connection and returns the collection handle.
type dialFunc func(ctx context.Context) (*mongo.Client, *mongo.Collection, error)

// MongoStore writes records to one MongoDB collection. While disconnected
// every operation returns ErrNotConnected; operations redial at most once
// per reconnectInterval until a connection succeeds. Close is final.
type MongoStore struct {
	cfg    MongoConfig
	logger *logger.Logger
	now    func() time.Time
	dial   dialFunc

	dialMu     sync.Mutex
	lastDialed time.Time

	mu     sync.RWMutex
	client *mongo.Client
	coll   *mongo.Collection
	closed bool
}

// NewMongoStore creates a disconnected store.
func NewMongoStore(cfg MongoConfig, log *logger.Logger) *MongoStore {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	s := &MongoStore{
		cfg:    cfg,
		logger: logger.OrGlobal(log),
		now:    time.Now,
	}
	s.dial = s.dialServer
	return s
}

// newMongoStoreWithCollection wraps an existing collection handle.
func newMongoStoreWithCollection(coll *mongo.Collection, log *logger.Logger) *MongoStore {
	s := NewMongoStore(MongoConfig{}, log)
	s.coll = coll
	return s
}

// Connect dials the server, verifies it with a ping and ensures the
// created_at and user_id indexes. On failure the store stays disconnected
// and later operations retry.
func (s *MongoStore) Connect(ctx context.Context) error {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()
	return s.connectLocked(ctx)
}

// connectLocked runs one dial. Caller holds dialMu.
func (s *MongoStore) connectLocked(ctx context.Context) error {
	s.lastDialed = s.now()

	client, coll, err := s.dial(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if client != nil {
			_ = client.Disconnect(context.Background())
		}
		return ErrNotConnected
	}
	s.client = client
	s.coll = coll
	s.mu.Unlock()

	s.logger.Info("connected to document store",
		zap.String("database", s.cfg.Database),
		zap.String("collection", s.cfg.Collection),
	)
	return nil
}

func (s *MongoStore) dialServer(ctx context.Context) (*mongo.Client, *mongo.Collection, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(s.cfg.URI).
		SetServerSelectionTimeout(s.cfg.Timeout).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("store: ping: %w", err)
	}

	coll := client.Database(s.cfg.Database).Collection(s.cfg.Collection)
	if err := ensureIndexes(ctx, coll); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return client, coll, nil
}

func ensureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("store: create indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) current() (*mongo.Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coll, s.closed
}

// collection returns the live collection, redialing a store that is
// disconnected but not closed.
func (s *MongoStore) collection(ctx context.Context) (*mongo.Collection, error) {
	coll, closed := s.current()
	if coll != nil {
		return coll, nil
	}
	if closed {
		return nil, ErrNotConnected
	}

	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	// Another caller may have connected while this one waited.
	if coll, closed = s.current(); coll != nil {
		return coll, nil
	}
	if closed || s.now().Sub(s.lastDialed) < reconnectInterval {
		return nil, ErrNotConnected
	}

	if err := s.connectLocked(ctx); err != nil {
		s.logger.Warn("document store reconnect failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	coll, _ = s.current()
	return coll, nil
}

// SaveCompleted maps and writes a finished conversation.
func (s *MongoStore) SaveCompleted(ctx context.Context, userID string, turns []model.Turn, summary *model.ConversationSummary, startedAt time.Time) (string, error) {
	if _, err := s.collection(ctx); err != nil {
		return "", err
	}
	rec, err := NewRecord(userID, turns, summary, startedAt, s.now())
	if err != nil {
		return "", err
	}
	return s.Insert(ctx, rec)
}

// Insert writes rec and returns the hex object id.
func (s *MongoStore) Insert(ctx context.Context, rec *model.Record) (string, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return "", err
	}

	doc := recordDocument{ID: primitive.NewObjectID(), Record: *rec}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("store: insert: %w", err)
	}
	return doc.ID.Hex(), nil
}

// GetByID loads one record by its hex object id.
func (s *MongoStore) GetByID(ctx context.Context, id string) (*model.Record, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	var doc recordDocument
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: find one: %w", err)
	}

	rec := doc.toRecord()
	return &rec, nil
}

// GetRecent returns up to limit records, newest first.
func (s *MongoStore) GetRecent(ctx context.Context, limit int) ([]model.Record, error) {
	return s.find(ctx, bson.M{}, limit)
}

// GetByUser returns up to limit records for userID, newest first.
func (s *MongoStore) GetByUser(ctx context.Context, userID string, limit int) ([]model.Record, error) {
	return s.find(ctx, bson.M{"user_id": userID}, limit)
}

// FindByDirection returns every record with the given overall direction.
func (s *MongoStore) FindByDirection(ctx context.Context, direction model.Direction) ([]model.Record, error) {
	return s.find(ctx, bson.M{"overall_sentiment.overall_emotional_direction": string(direction)}, 0)
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, limit int) ([]model.Record, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store: find: %w", err)
	}
	defer cur.Close(ctx)

	var docs []recordDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: decode: %w", err)
	}

	out := make([]model.Record, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toRecord())
	}
	return out, nil
}

// Statistics runs a single $group over the collection.
func (s *MongoStore) Statistics(ctx context.Context) (*model.Statistics, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total_conversations", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "total_messages", Value: bson.D{{Key: "$sum", Value: "$total_messages"}}},
			{Key: "average_sentiment", Value: bson.D{{Key: "$avg", Value: "$overall_sentiment.average_sentiment_score"}}},
		}}},
	}

	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("store: aggregate: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		TotalConversations int     `bson:"total_conversations"`
		TotalMessages      int     `bson:"total_messages"`
		AverageSentiment   float64 `bson:"average_sentiment"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("store: decode statistics: %w", err)
	}

	stats := &model.Statistics{}
	if len(rows) > 0 {
		stats.TotalConversations = rows[0].TotalConversations
		stats.TotalMessages = rows[0].TotalMessages
		stats.AverageSentiment = roundScore(rows[0].AverageSentiment)
	}
	return stats, nil
}

// Ping checks the server connection, redialing when disconnected.
func (s *MongoStore) Ping(ctx context.Context) error {
	if _, err := s.collection(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	if client == nil {
		return nil
	}
	return client.Ping(ctx, nil)
}

// Close disconnects from the server. A closed store never redials.
func (s *MongoStore) Close(ctx context.Context) error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.coll = nil
	s.closed = true
	s.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}
