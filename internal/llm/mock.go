package llm

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// MockReply is one scripted exchange result.
type MockReply struct {
	Content   string
	TokensIn  int
	TokensOut int
	Err       error
}

// MockClient answers from a script, then falls back to an offline echo
// responder that emits the structured JSON contract. It records every
// request it receives.
type MockClient struct {
	mu       sync.Mutex
	script   []MockReply
	requests []*CompletionRequest
}

// NewMockClient creates a mock client with an optional script.
func NewMockClient(script ...MockReply) *MockClient {
	return &MockClient{script: script}
}

// Name returns the provider name.
func (m *MockClient) Name() string {
	return "mock"
}

// Enqueue appends replies to the script.
func (m *MockClient) Enqueue(replies ...MockReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, replies...)
}

// Requests returns the requests seen so far.
func (m *MockClient) Requests() []*CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*CompletionRequest(nil), m.requests...)
}

// Complete pops the next scripted reply or synthesizes one.
func (m *MockClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *req
	cp.Messages = append([]ChatMessage(nil), req.Messages...)
	m.requests = append(m.requests, &cp)

	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		if next.Err != nil {
			return nil, next.Err
		}
		return &CompletionResponse{
			Content:   next.Content,
			Model:     "mock",
			TokensIn:  next.TokensIn,
			TokensOut: next.TokensOut,
		}, nil
	}

	return echoReply(req), nil
}

var goodbyes = []string{"bye", "goodbye", "see you", "farewell"}

func echoReply(req *CompletionRequest) *CompletionResponse {
	var last string
	userTurns := 0
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			last = msg.Content
			userTurns++
		}
	}

	out := map[string]any{
		"response": "Thanks for your message: " + last,
	}
	lower := strings.ToLower(last)
	for _, word := range goodbyes {
		if strings.Contains(lower, word) {
			out["response"] = "Thank you for chatting with us. Goodbye!"
			out["conversation_summary"] = map[string]any{
				"total_user_messages": userTurns,
				"full_conversation_sentiment": map[string]any{
					"overall_emotional_direction": "neutral",
					"average_sentiment_score":     0.0,
					"narrative_description":       "Offline mock conversation.",
				},
				"insights": []string{"Generated without a language model."},
			}
			break
		}
	}

	data, _ := json.Marshal(out)
	return &CompletionResponse{
		Content:   string(data),
		Model:     "mock",
		TokensIn:  len(req.Messages) * 16,
		TokensOut: len(data) / 4,
	}
}
