package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/sentiment-support-agent/internal/llm"
	"github.com/capitalize-ai/sentiment-support-agent/internal/service"
	"github.com/capitalize-ai/sentiment-support-agent/internal/store"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
)

func newTestREPL(t *testing.T, input string, client llm.Client) (*repl, *bytes.Buffer, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	chat := service.NewChatService(service.Deps{
		Client: client,
		Store:  st,
		Logger: logger.Nop(),
	}, service.ChatConfig{Model: "mock", MaxTokens: 128}, "tester")

	var out bytes.Buffer
	return newREPL(strings.NewReader(input), &out, chat, st), &out, st
}

func TestFullConversationIsSaved(t *testing.T) {
	r, out, st := newTestREPL(t, "hello\n\nbye\nn\n", llm.NewMockClient())

	require.NoError(t, r.run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Assistant: Thanks for your message: hello")
	assert.Contains(t, text, "CONVERSATION SUMMARY")
	assert.Contains(t, text, "Conversation saved with ID: ")
	assert.Contains(t, text, "USAGE")

	stats, err := st.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalConversations)
}

func TestQuitSkipsSave(t *testing.T) {
	r, out, st := newTestREPL(t, "hello\nquit\n", llm.NewMockClient())

	require.NoError(t, r.run(context.Background()))
	assert.Contains(t, out.String(), "Exiting without saving")

	stats, err := st.Statistics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalConversations)
}

func TestStatsCommand(t *testing.T) {
	r, out, _ := newTestREPL(t, "stats\n", llm.NewMockClient())

	require.NoError(t, r.run(context.Background()))
	assert.Contains(t, out.String(), "DATABASE STATISTICS")
	assert.Contains(t, out.String(), "Conversations:     0")
}

func TestRestartStartsFreshConversation(t *testing.T) {
	r, _, st := newTestREPL(t, "bye\ny\nhello again\ngoodbye\nn\n", llm.NewMockClient())

	require.NoError(t, r.run(context.Background()))

	stats, err := st.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalConversations)
}

func TestEndOfInputExits(t *testing.T) {
	r, out, _ := newTestREPL(t, "", llm.NewMockClient())

	require.NoError(t, r.run(context.Background()))
	assert.Contains(t, out.String(), "Exiting...")
}

func TestCredentialFailureAborts(t *testing.T) {
	mock := llm.NewMockClient(llm.MockReply{Err: fmt.Errorf("%w: 401", llm.ErrInvalidCredentials)})
	r, _, _ := newTestREPL(t, "hello\n", mock)

	err := r.run(context.Background())
	assert.ErrorIs(t, err, llm.ErrInvalidCredentials)
}
