package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
)

// DefaultSpoolKey is the Redis list holding records whose save failed.
const DefaultSpoolKey = "sentiment:spool:records"

// RedisSpool parks records that could not be written so a later drain can
// retry them. Records are kept in FIFO order.
type RedisSpool struct {
	client *redis.Client
	key    string
	logger *logger.Logger
}

// NewRedisSpool creates a spool on the given list key.
func NewRedisSpool(client *redis.Client, key string, log *logger.Logger) *RedisSpool {
	if key == "" {
		key = DefaultSpoolKey
	}
	return &RedisSpool{client: client, key: key, logger: logger.OrGlobal(log)}
}

// spoolEntry is the JSON payload of one parked record.
type spoolEntry struct {
	Record *model.Record      `json:"record"`
	Usage  model.CostEstimate `json:"usage"`
}

// SavedFunc is called after a drain writes a parked record.
type SavedFunc func(ctx context.Context, recordID string, rec *model.Record, usage model.CostEstimate)

// Push appends rec and the conversation's usage to the spool.
func (s *RedisSpool) Push(ctx context.Context, rec *model.Record, usage model.CostEstimate) error {
	b, err := json.Marshal(spoolEntry{Record: rec, Usage: usage})
	if err != nil {
		return fmt.Errorf("spool: encode: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, b).Err(); err != nil {
		return fmt.Errorf("spool: push: %w", err)
	}
	return nil
}

// Len returns the number of parked records.
func (s *RedisSpool) Len(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.key).Result()
}

// Drain writes parked records into dst until the spool is empty or a write
// fails. A record that fails to write is put back at the head of the list.
// onSaved, when non-nil, runs after each successful write.
func (s *RedisSpool) Drain(ctx context.Context, dst Store, onSaved SavedFunc) (int, error) {
	drained := 0
	for {
		raw, err := s.client.LPop(ctx, s.key).Bytes()
		if errors.Is(err, redis.Nil) {
			return drained, nil
		}
		if err != nil {
			return drained, fmt.Errorf("spool: pop: %w", err)
		}

		var entry spoolEntry
		if err := json.Unmarshal(raw, &entry); err != nil || entry.Record == nil {
			s.logger.Error("dropping undecodable spooled record", zap.Error(err))
			continue
		}
		rec := entry.Record

		id, err := dst.Insert(ctx, rec)
		if err != nil {
			if perr := s.client.LPush(ctx, s.key, raw).Err(); perr != nil {
				s.logger.Error("failed to requeue spooled record", zap.Error(perr), zap.String("user_id", rec.UserID))
			}
			return drained, err
		}

		drained++
		s.logger.Info("spooled record saved", zap.String("record_id", id), zap.String("user_id", rec.UserID))
		if onSaved != nil {
			onSaved(ctx, id, rec, entry.Usage)
		}
	}
}
