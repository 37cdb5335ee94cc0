package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/sentiment-support-agent/internal/conversation"
	"github.com/capitalize-ai/sentiment-support-agent/internal/llm"
	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
	"github.com/capitalize-ai/sentiment-support-agent/internal/store"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
)

const terminalReply = `{"response":"Goodbye!","conversation_summary":{"total_user_messages":2,"full_conversation_sentiment":{"overall_emotional_direction":"evolved_negative","average_sentiment_score":-0.6,"narrative_description":"Got worse."},"sentiment_journey":{"opening_phase":{"sentiment":"neutral","score":0,"description":"ok"},"middle_phase":{"sentiment":"negative","score":-0.5,"description":"worse"},"closing_phase":{"sentiment":"negative","score":-0.8,"description":"upset"},"mood_shift_analysis":"declined"},"key_emotional_moments":[],"insights":["escalate"]}}`

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

type memorySpool struct {
	records []*model.Record
	usage   []model.CostEstimate
	err     error
}

func (s *memorySpool) Push(_ context.Context, rec *model.Record, usage model.CostEstimate) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	s.usage = append(s.usage, usage)
	return nil
}

// brokenStore fails every save with ErrNotConnected.
type brokenStore struct {
	*store.MemoryStore
}

func (brokenStore) SaveCompleted(context.Context, string, []model.Turn, *model.ConversationSummary, time.Time) (string, error) {
	return "", store.ErrNotConnected
}

func newTestChat(t *testing.T, client llm.Client, st store.Store) *ChatService {
	t.Helper()
	return NewChatService(Deps{
		Client: client,
		Store:  st,
		Logger: logger.Nop(),
	}, ChatConfig{Model: "test-model", MaxTokens: 256, Temperature: 0.7}, "u1")
}

func TestSendMessageAppendsTurnAndRecordsUsage(t *testing.T) {
	mock := llm.NewMockClient(llm.MockReply{Content: "```json\n{\"response\":\"hi\"}\n```", TokensIn: 100000, TokensOut: 50000})
	chat := newTestChat(t, mock, store.NewMemoryStore())

	resp, err := chat.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Response)
	assert.True(t, chat.IsActive())

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].JSONMode)
	assert.Equal(t, "test-model", reqs[0].Model)
	require.Len(t, reqs[0].Messages, 2)
	assert.Equal(t, conversation.SystemPrompt, reqs[0].Messages[0].Content)
	assert.Equal(t, "hello", reqs[0].Messages[1].Content)

	m := chat.Metrics()
	assert.Equal(t, 1, m.MessageCount)
	assert.Equal(t, 150000, m.Tokens)
	assert.InDelta(t, 0.045, m.Cost, 1e-9)
	assert.InDelta(t, 0.015, m.Estimate.InputCost, 1e-9)
	assert.True(t, m.Active)
}

func TestSendMessageResendsHistory(t *testing.T) {
	mock := llm.NewMockClient(
		llm.MockReply{Content: `{"response":"first"}`},
		llm.MockReply{Content: `{"response":"second"}`},
	)
	chat := newTestChat(t, mock, store.NewMemoryStore())

	_, err := chat.SendMessage(context.Background(), "one")
	require.NoError(t, err)
	_, err = chat.SendMessage(context.Background(), "two")
	require.NoError(t, err)

	msgs := mock.Requests()[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "one", msgs[1].Content)
	assert.JSONEq(t, `{"response":"first"}`, msgs[2].Content)
	assert.Equal(t, "two", msgs[3].Content)
}

func TestSendMessageParseFailureKeepsConversationActive(t *testing.T) {
	mock := llm.NewMockClient(llm.MockReply{Content: "not json", TokensIn: 10, TokensOut: 5})
	chat := newTestChat(t, mock, store.NewMemoryStore())

	resp, err := chat.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, conversation.FallbackParseResponse, resp.Response)
	assert.NotEmpty(t, resp.Error)
	assert.True(t, chat.IsActive())

	last, ok := chat.Conversation().LastTurn()
	require.True(t, ok)
	assert.Equal(t, conversation.FallbackParseResponse, last.BotResponse)
	assert.Equal(t, 15, chat.Metrics().Tokens)
}

func TestSendMessageTransportFailureDegrades(t *testing.T) {
	mock := llm.NewMockClient(llm.MockReply{Err: errors.New("connection reset")})
	chat := newTestChat(t, mock, store.NewMemoryStore())

	resp, err := chat.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, conversation.FallbackTransportResponse, resp.Response)
	assert.Contains(t, resp.Error, "connection reset")
	assert.True(t, chat.IsActive())
	assert.Equal(t, 1, chat.Metrics().MessageCount)
	assert.Zero(t, chat.Metrics().Tokens)
}

func TestSendMessageSurfacesInvalidCredentials(t *testing.T) {
	mock := llm.NewMockClient(llm.MockReply{Err: fmt.Errorf("openai: %w", llm.ErrInvalidCredentials)})
	chat := newTestChat(t, mock, store.NewMemoryStore())

	resp, err := chat.SendMessage(context.Background(), "hello")
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, llm.ErrInvalidCredentials)
	assert.Zero(t, chat.Metrics().MessageCount)
}

func TestTerminalResponseEndsAndSaves(t *testing.T) {
	mock := llm.NewMockClient(
		llm.MockReply{Content: `{"response":"How can I help?"}`},
		llm.MockReply{Content: terminalReply},
	)
	st := store.NewMemoryStore()
	pub := &recordingPublisher{}
	chat := NewChatService(Deps{Client: mock, Store: st, Publisher: pub, Logger: logger.Nop()}, ChatConfig{Model: "m"}, "u1")

	id, err := chat.EndConversation(context.Background())
	require.NoError(t, err)
	assert.Empty(t, id, "nothing to save while active")

	_, err = chat.SendMessage(context.Background(), "my order is late")
	require.NoError(t, err)
	resp, err := chat.SendMessage(context.Background(), "bye")
	require.NoError(t, err)
	require.True(t, resp.Terminal())
	assert.False(t, chat.IsActive())
	assert.InDelta(t, -0.6, resp.ConversationSummary.Overall.AverageScore, 1e-9)

	_, err = chat.SendMessage(context.Background(), "hello again")
	assert.ErrorIs(t, err, conversation.ErrInvalidState)

	id, err = chat.EndConversation(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	again, err := chat.EndConversation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, again)

	rec, err := st.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, 2, rec.TotalMessages)
	assert.Equal(t, model.DirectionEvolvedNegative, rec.OverallSentiment.Direction)
	assert.Equal(t, []string{"escalate"}, rec.Insights)

	require.Len(t, pub.events, 1)
	assert.Equal(t, id, pub.events[0].RecordID)
	assert.Equal(t, model.EventTypeCompleted, pub.events[0].Type)
	assert.Equal(t, model.DirectionEvolvedNegative, pub.events[0].Direction)
}

func TestEndConversationStoreUnavailable(t *testing.T) {
	mock := llm.NewMockClient(llm.MockReply{Content: terminalReply})
	chat := newTestChat(t, mock, brokenStore{store.NewMemoryStore()})

	_, err := chat.SendMessage(context.Background(), "bye")
	require.NoError(t, err)

	id, err := chat.EndConversation(context.Background())
	assert.Empty(t, id)
	assert.ErrorIs(t, err, store.ErrNotConnected)
	assert.NotNil(t, chat.Conversation().Summary())
}

func TestEndConversationSpoolsFailedSave(t *testing.T) {
	mock := llm.NewMockClient(llm.MockReply{Content: terminalReply, TokensIn: 2000, TokensOut: 500})
	spool := &memorySpool{}
	chat := NewChatService(Deps{
		Client: mock,
		Store:  brokenStore{store.NewMemoryStore()},
		Spool:  spool,
		Logger: logger.Nop(),
	}, ChatConfig{}, "u1")

	_, err := chat.SendMessage(context.Background(), "bye")
	require.NoError(t, err)

	_, err = chat.EndConversation(context.Background())
	assert.ErrorIs(t, err, ErrSpooled)
	assert.ErrorIs(t, err, store.ErrNotConnected)
	require.Len(t, spool.records, 1)
	assert.Equal(t, "u1", spool.records[0].UserID)
	assert.Equal(t, chat.Cost(), spool.usage[0])
	assert.Equal(t, 2500, spool.usage[0].TotalTokens)

	_, err = chat.EndConversation(context.Background())
	assert.ErrorIs(t, err, ErrSpooled)
	assert.Len(t, spool.records, 1)
}

func TestPublishFailureDoesNotFailSave(t *testing.T) {
	mock := llm.NewMockClient(llm.MockReply{Content: terminalReply})
	pub := &recordingPublisher{err: errors.New("nats down")}
	chat := NewChatService(Deps{Client: mock, Store: store.NewMemoryStore(), Publisher: pub, Logger: logger.Nop()}, ChatConfig{}, "u1")

	_, err := chat.SendMessage(context.Background(), "bye")
	require.NoError(t, err)

	id, err := chat.EndConversation(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestRestartStartsFreshConversation(t *testing.T) {
	mock := llm.NewMockClient(llm.MockReply{Content: terminalReply})
	st := store.NewMemoryStore()
	chat := newTestChat(t, mock, st)

	_, err := chat.SendMessage(context.Background(), "bye")
	require.NoError(t, err)
	_, err = chat.EndConversation(context.Background())
	require.NoError(t, err)

	chat.Restart()
	assert.True(t, chat.IsActive())
	assert.Zero(t, chat.Metrics().MessageCount)
	assert.Equal(t, "u1", chat.Conversation().UserID())

	id, err := chat.EndConversation(context.Background())
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestMetricsDuration(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	chat := NewChatService(Deps{
		Client: llm.NewMockClient(),
		Store:  store.NewMemoryStore(),
		Logger: logger.Nop(),
		Clock:  func() time.Time { return now },
	}, ChatConfig{}, "")

	now = start.Add(90 * time.Second)
	m := chat.Metrics()
	assert.Equal(t, 90.0, m.DurationSeconds)
	assert.Equal(t, conversation.DefaultUserID, chat.Conversation().UserID())
}
