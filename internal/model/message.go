package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// TurnSentiment is the per-turn sentiment slot of a persisted turn. Nothing
// computes per-turn sentiment, so it is always nil.
type TurnSentiment struct {
	Classification string  `json:"classification" bson:"classification"`
	Score          float64 `json:"score" bson:"score"`
}

// Turn is one user message paired with the assistant reply.
type Turn struct {
	UserMessage string         `json:"user_message" bson:"user_message"`
	BotResponse string         `json:"bot_response" bson:"bot_response"`
	Timestamp   time.Time      `json:"timestamp" bson:"timestamp"`
	Sentiment   *TurnSentiment `json:"sentiment" bson:"sentiment"`
}

// Response is the structured reply decoded from one model completion.
type Response struct {
	Response            string               `json:"response"`
	ConversationSummary *ConversationSummary `json:"conversation_summary,omitempty"`

	// Error carries the diagnostic text when Response is a fallback apology.
	Error string `json:"error,omitempty"`

	// Defaulted names summary fields that were missing or invalid and were
	// replaced by documented defaults.
	Defaulted []string `json:"-"`
}

// Terminal reports whether the response carries the end-of-conversation summary.
func (r *Response) Terminal() bool {
	return r != nil && r.ConversationSummary != nil
}

// SendMessageRequest is the request to send a user turn.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse is the reply to a user turn.
type SendMessageResponse struct {
	Response            string               `json:"response"`
	ConversationSummary *ConversationSummary `json:"conversation_summary,omitempty"`
	Error               string               `json:"error,omitempty"`
	Active              bool                 `json:"active"`
	MessageCount        int                  `json:"message_count"`
}
