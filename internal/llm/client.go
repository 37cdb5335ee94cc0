// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials marks a structural endpoint failure (rejected
	// API key, missing permission). It is never retried and never masked as
	// a turn-level apology.
	ErrInvalidCredentials = errors.New("llm: invalid credentials")

	// ErrNoChoices is returned when the endpoint answers without any completion.
	ErrNoChoices = errors.New("llm: completion returned no choices")
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64

	// JSONMode asks the endpoint for a single JSON object with no prose.
	JSONMode bool
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends one request/response exchange.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderMock      Provider = "mock"
)

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey, baseURL string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, baseURL)
	case ProviderMock:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", provider)
	}
}
