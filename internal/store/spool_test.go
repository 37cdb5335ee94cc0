package store

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
)

// failingStore rejects every insert.
type failingStore struct {
	*MemoryStore
}

func (failingStore) Insert(context.Context, *model.Record) (string, error) {
	return "", errors.New("write refused")
}

func newTestSpool(t *testing.T) (*RedisSpool, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSpool(client, "", logger.Nop()), mr
}

func spooledRecord(t *testing.T, userID string) *model.Record {
	t.Helper()
	rec, err := NewRecord(userID, sampleTurns(2), sampleSummary(model.DirectionMixed, 0.3), time.Now(), time.Now())
	require.NoError(t, err)
	return rec
}

func TestSpoolDrainIntoStore(t *testing.T) {
	ctx := context.Background()
	spool, _ := newTestSpool(t)

	require.NoError(t, spool.Push(ctx, spooledRecord(t, "first"), model.CostEstimate{}))
	require.NoError(t, spool.Push(ctx, spooledRecord(t, "second"), model.CostEstimate{}))

	n, err := spool.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	dst := NewMemoryStore()
	drained, err := spool.Drain(ctx, dst, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, drained)

	recs, err := dst.GetRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 2, recs[0].TotalMessages)

	n, err = spool.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSpoolRequeuesOnFailedWrite(t *testing.T) {
	ctx := context.Background()
	spool, mr := newTestSpool(t)

	require.NoError(t, spool.Push(ctx, spooledRecord(t, "first"), model.CostEstimate{}))
	require.NoError(t, spool.Push(ctx, spooledRecord(t, "second"), model.CostEstimate{}))

	drained, err := spool.Drain(ctx, failingStore{NewMemoryStore()}, nil)
	assert.Error(t, err)
	assert.Zero(t, drained)

	items, err := mr.List(DefaultSpoolKey)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Contains(t, items[0], `"user_id":"first"`)
}

func TestSpoolSkipsUndecodableEntries(t *testing.T) {
	ctx := context.Background()
	spool, mr := newTestSpool(t)

	_, err := mr.Lpush(DefaultSpoolKey, "not json")
	require.NoError(t, err)
	require.NoError(t, spool.Push(ctx, spooledRecord(t, "good"), model.CostEstimate{}))

	drained, err := spool.Drain(ctx, NewMemoryStore(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, drained)
}

func TestSpoolDrainEmpty(t *testing.T) {
	spool, _ := newTestSpool(t)
	drained, err := spool.Drain(context.Background(), NewMemoryStore(), nil)
	require.NoError(t, err)
	assert.Zero(t, drained)
}

func TestSpoolDrainReportsSavedRecordsWithUsage(t *testing.T) {
	ctx := context.Background()
	spool, _ := newTestSpool(t)

	usage := model.CostEstimate{InputTokens: 1200, OutputTokens: 300, TotalTokens: 1500, TotalCost: 0.00036}
	require.NoError(t, spool.Push(ctx, spooledRecord(t, "first"), usage))

	var (
		savedIDs []string
		got      model.CostEstimate
	)
	dst := NewMemoryStore()
	drained, err := spool.Drain(ctx, dst, func(_ context.Context, id string, rec *model.Record, u model.CostEstimate) {
		savedIDs = append(savedIDs, id)
		assert.Equal(t, "first", rec.UserID)
		got = u
	})
	require.NoError(t, err)
	assert.Equal(t, 1, drained)
	require.Len(t, savedIDs, 1)
	assert.Equal(t, usage, got)

	rec, err := dst.GetByID(ctx, savedIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "first", rec.UserID)
}

func TestSpoolDrainDropsEntryWithoutRecord(t *testing.T) {
	ctx := context.Background()
	spool, mr := newTestSpool(t)

	_, err := mr.Lpush(DefaultSpoolKey, `{"usage":{"total_tokens":5}}`)
	require.NoError(t, err)

	drained, err := spool.Drain(ctx, NewMemoryStore(), nil)
	require.NoError(t, err)
	assert.Zero(t, drained)
}
