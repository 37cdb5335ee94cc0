package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeCompleted EventType = "completed"
)

// ConversationCompletedEvent is announced after a finished conversation is stored.
type ConversationCompletedEvent struct {
	ID               string    `json:"id"`
	Type             EventType `json:"type"`
	RecordID         string    `json:"record_id"`
	UserID           string    `json:"user_id"`
	TotalMessages    int       `json:"total_messages"`
	Direction        Direction `json:"overall_emotional_direction"`
	AverageSentiment float64   `json:"average_sentiment_score"`
	TotalTokens      int       `json:"total_tokens"`
	TotalCost        float64   `json:"total_cost"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewCompletedEvent describes the stored record recordID.
func NewCompletedEvent(recordID, userID string, totalMessages int, overall OverallSentiment, usage CostEstimate, at time.Time) *ConversationCompletedEvent {
	return &ConversationCompletedEvent{
		ID:               uuid.NewString(),
		Type:             EventTypeCompleted,
		RecordID:         recordID,
		UserID:           userID,
		TotalMessages:    totalMessages,
		Direction:        overall.Direction,
		AverageSentiment: overall.AverageScore,
		TotalTokens:      usage.TotalTokens,
		TotalCost:        usage.TotalCost,
		CreatedAt:        at,
	}
}
