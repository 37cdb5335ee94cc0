package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
)

// MemoryStore keeps records in process memory. It is used for local runs
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.Record
	closed  bool
	now     func() time.Time
}

// NewMemoryStore creates an empty, connected memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]model.Record),
		now:     time.Now,
	}
}

// SaveCompleted maps and stores a finished conversation.
func (s *MemoryStore) SaveCompleted(ctx context.Context, userID string, turns []model.Turn, summary *model.ConversationSummary, startedAt time.Time) (string, error) {
	rec, err := NewRecord(userID, turns, summary, startedAt, s.now())
	if err != nil {
		return "", err
	}
	return s.Insert(ctx, rec)
}

// Insert stores rec under a fresh id.
func (s *MemoryStore) Insert(ctx context.Context, rec *model.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrNotConnected
	}

	cp := *rec
	// v7 ids sort in insertion order, which breaks created_at ties.
	cp.ID = uuid.Must(uuid.NewV7()).String()
	s.records[cp.ID] = cp

	return cp.ID, nil
}

// GetByID returns the record with id.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*model.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrNotConnected
	}

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// GetRecent returns up to limit records, newest first.
func (s *MemoryStore) GetRecent(ctx context.Context, limit int) ([]model.Record, error) {
	return s.find(limit, func(model.Record) bool { return true })
}

// GetByUser returns up to limit records for userID, newest first.
func (s *MemoryStore) GetByUser(ctx context.Context, userID string, limit int) ([]model.Record, error) {
	return s.find(limit, func(r model.Record) bool { return r.UserID == userID })
}

// FindByDirection returns every record with the given overall direction.
func (s *MemoryStore) FindByDirection(ctx context.Context, direction model.Direction) ([]model.Record, error) {
	return s.find(0, func(r model.Record) bool { return r.OverallSentiment.Direction == direction })
}

func (s *MemoryStore) find(limit int, match func(model.Record) bool) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrNotConnected
	}

	out := make([]model.Record, 0)
	for _, r := range s.records {
		if match(r) {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Statistics totals conversations and messages and averages the overall scores.
func (s *MemoryStore) Statistics(ctx context.Context) (*model.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrNotConnected
	}

	stats := &model.Statistics{}
	var sum float64
	for _, r := range s.records {
		stats.TotalConversations++
		stats.TotalMessages += r.TotalMessages
		sum += r.OverallSentiment.AverageScore
	}
	if stats.TotalConversations > 0 {
		stats.AverageSentiment = roundScore(sum / float64(stats.TotalConversations))
	}

	return stats, nil
}

// Ping reports ErrNotConnected after Close.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrNotConnected
	}
	return nil
}

// Close disconnects the store. Further calls fail with ErrNotConnected.
func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
