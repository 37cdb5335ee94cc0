package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/sentiment-support-agent/internal/config"
	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
	"github.com/capitalize-ai/sentiment-support-agent/internal/store"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.ConversationCompletedEvent
	err    error
}

func (p *recordingPublisher) PublishCompleted(_ context.Context, event *model.ConversationCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func testConfig() *config.Config {
	return &config.Config{
		LLMProvider:          config.ProviderMock,
		StoreBackend:         config.BackendMemory,
		MaxTokens:            128,
		Temperature:          0.7,
		InputCostPerMillion:  0.15,
		OutputCostPerMillion: 0.60,
	}
}

func TestBuildMemoryRuntime(t *testing.T) {
	ctx := context.Background()
	rt, err := Build(ctx, testConfig(), logger.Nop())
	require.NoError(t, err)
	defer rt.Close(ctx)

	assert.Equal(t, "mock", rt.Client.Name())
	assert.IsType(t, &store.MemoryStore{}, rt.Store)
	assert.Nil(t, rt.Spool)
	assert.Nil(t, rt.Publisher)

	deps := rt.Deps()
	assert.Nil(t, deps.Spool)
	assert.Nil(t, deps.Publisher)
}

func TestBuildRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.LLMProvider = "nope"
	_, err := Build(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)
}

func TestChatConfigFromSettings(t *testing.T) {
	cfg := testConfig()
	cfg.OutputCostPerMillion = 2

	cc := ChatConfig(cfg)
	assert.Equal(t, "mock", cc.Model)
	assert.Equal(t, 128, cc.MaxTokens)
	assert.Equal(t, 2.0, cc.Rates.OutputPerMillion)
}

func TestRedisSpoolIsWiredAndDrained(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()

	rt, err := Build(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer rt.Close(ctx)
	require.NotNil(t, rt.Spool)
	assert.NotNil(t, rt.Deps().Spool)

	summary := &model.ConversationSummary{Overall: model.OverallSentiment{Direction: model.DirectionNeutral}}
	rec, err := store.NewRecord("u1", nil, summary, time.Now(), time.Now())
	require.NoError(t, err)
	require.NoError(t, rt.Spool.Push(ctx, rec, model.CostEstimate{}))

	rt.DrainSpool(ctx)

	stats, err := rt.Store.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalConversations)
}

func TestUnreachableRedisDisablesSpool(t *testing.T) {
	cfg := testConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logger.Nop()))
}

func TestDrainedRecordsAreAnnounced(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()

	rt, err := Build(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer rt.Close(ctx)

	pub := &recordingPublisher{}
	rt.Publisher = pub

	summary := &model.ConversationSummary{Overall: model.OverallSentiment{Direction: model.DirectionEvolvedPositive, AverageScore: 0.4}}
	rec, err := store.NewRecord("u1", nil, summary, time.Now(), time.Now())
	require.NoError(t, err)
	usage := model.CostEstimate{TotalTokens: 900, TotalCost: 0.0002}
	require.NoError(t, rt.Spool.Push(ctx, rec, usage))

	rt.DrainSpool(ctx)

	require.Len(t, pub.events, 1)
	event := pub.events[0]
	assert.Equal(t, model.EventTypeCompleted, event.Type)
	assert.Equal(t, "u1", event.UserID)
	assert.Equal(t, model.DirectionEvolvedPositive, event.Direction)
	assert.Equal(t, 900, event.TotalTokens)

	stored, err := rt.Store.GetByID(ctx, event.RecordID)
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.UserID)
}

func TestDrainContinuesWhenPublishFails(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()

	rt, err := Build(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer rt.Close(ctx)
	rt.Publisher = &recordingPublisher{err: errors.New("nats down")}

	summary := &model.ConversationSummary{Overall: model.OverallSentiment{Direction: model.DirectionMixed}}
	for _, user := range []string{"a", "b"} {
		rec, err := store.NewRecord(user, nil, summary, time.Now(), time.Now())
		require.NoError(t, err)
		require.NoError(t, rt.Spool.Push(ctx, rec, model.CostEstimate{}))
	}

	rt.DrainSpool(ctx)

	stats, err := rt.Store.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalConversations)
}
