// Package model defines data structures for the sentiment support agent.
package model

import (
	"time"
)

// Record is the durable shape of one finished conversation.
type Record struct {
	ID                  string            `json:"id" bson:"-"`
	UserID              string            `json:"user_id" bson:"user_id"`
	CreatedAt           time.Time         `json:"created_at" bson:"created_at"`
	CompletedAt         time.Time         `json:"completed_at" bson:"completed_at"`
	TotalMessages       int               `json:"total_messages" bson:"total_messages"`
	Messages            []Turn            `json:"messages" bson:"messages"`
	OverallSentiment    OverallSentiment  `json:"overall_sentiment" bson:"overall_sentiment"`
	SentimentJourney    SentimentJourney  `json:"sentiment_journey" bson:"sentiment_journey"`
	KeyEmotionalMoments []EmotionalMoment `json:"key_emotional_moments" bson:"key_emotional_moments"`
	Insights            []string          `json:"insights" bson:"insights"`
	FullSummary         map[string]any    `json:"full_summary" bson:"full_summary"`
}

// Statistics aggregates over every stored record.
type Statistics struct {
	TotalConversations int     `json:"total_conversations"`
	TotalMessages      int     `json:"total_messages"`
	AverageSentiment   float64 `json:"average_sentiment"`
}

// CostEstimate is derived from token counters and a rate table. It is never stored.
type CostEstimate struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	InputCost    float64 `json:"input_cost"`
	OutputCost   float64 `json:"output_cost"`
	TotalCost    float64 `json:"total_cost"`
}

// SessionMetrics is the live view of one conversation.
type SessionMetrics struct {
	MessageCount    int          `json:"message_count"`
	Tokens          int          `json:"tokens"`
	Cost            float64      `json:"cost"`
	DurationSeconds float64      `json:"duration_seconds"`
	Estimate        CostEstimate `json:"estimate"`
	Active          bool         `json:"active"`
}

// StartSessionRequest is the request to open a conversation.
type StartSessionRequest struct {
	UserID string `json:"user_id"`
}

// StartSessionResponse identifies a newly opened conversation.
type StartSessionResponse struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	StartedAt time.Time `json:"started_at"`
}

// EndSessionResponse is the outcome of ending a conversation.
type EndSessionResponse struct {
	RecordID string       `json:"record_id"`
	Cost     CostEstimate `json:"cost"`
}

// ListConversationsResponse is the response for listing stored conversations.
type ListConversationsResponse struct {
	Conversations []Record `json:"conversations"`
	Total         int      `json:"total"`
}
