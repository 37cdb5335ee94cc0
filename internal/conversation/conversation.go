// Package conversation holds the per-session turn history, the structured
// response parser and the fixed system prompt.
package conversation

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/capitalize-ai/sentiment-support-agent/internal/llm"
	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
	"github.com/capitalize-ai/sentiment-support-agent/internal/usage"
)

// DefaultUserID is used when a conversation is started without a user.
const DefaultUserID = "anonymous"

// ErrInvalidState is returned when a turn is appended to an ended conversation.
var ErrInvalidState = errors.New("conversation: conversation has ended")

// State is the lifecycle state of a conversation.
type State int

const (
	StateActive State = iota
	StateEnded
)

func (s State) String() string {
	if s == StateEnded {
		return "ended"
	}
	return "active"
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithClock overrides the time source used for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRates prices the conversation's token meter.
func WithRates(rates usage.Rates) Option {
	return func(c *Conversation) {
		c.meter = usage.NewMeter(rates)
	}
}

// Conversation is the turn history of one session. It is driven by a single
// caller at a time and does no locking of its own.
type Conversation struct {
	userID    string
	startedAt time.Time
	state     State
	turns     []model.Turn
	summary   *model.ConversationSummary
	meter     *usage.Meter
	now       func() time.Time
}

// New starts an active conversation for userID.
func New(userID string, opts ...Option) *Conversation {
	if userID == "" {
		userID = DefaultUserID
	}

	c := &Conversation{
		userID: userID,
		state:  StateActive,
		meter:  usage.NewMeter(usage.DefaultRates),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startedAt = c.now()

	return c
}

// BuildOutboundHistory rebuilds the full exchange sent to the model: the
// system prompt, then a user and an assistant message per stored turn. The
// output depends only on the stored turns.
func (c *Conversation) BuildOutboundHistory() []llm.ChatMessage {
	msgs := make([]llm.ChatMessage, 0, 1+2*len(c.turns))
	msgs = append(msgs, llm.ChatMessage{Role: string(model.RoleSystem), Content: SystemPrompt})

	for _, t := range c.turns {
		msgs = append(msgs,
			llm.ChatMessage{Role: string(model.RoleUser), Content: t.UserMessage},
			llm.ChatMessage{Role: string(model.RoleAssistant), Content: assistantContent(t.BotResponse)},
		)
	}

	return msgs
}

// Outbound is the history plus the pending user message.
func (c *Conversation) Outbound(userMessage string) []llm.ChatMessage {
	return append(c.BuildOutboundHistory(), llm.ChatMessage{Role: string(model.RoleUser), Content: userMessage})
}

// assistantContent re-serializes a stored reply in the structured turn shape.
func assistantContent(text string) string {
	b, err := json.Marshal(struct {
		Response string `json:"response"`
	}{Response: text})
	if err != nil {
		return text
	}
	return string(b)
}

// AppendTurn records one exchange. A response carrying a summary ends the
// conversation.
func (c *Conversation) AppendTurn(userMessage string, resp *model.Response) error {
	if c.state == StateEnded {
		return ErrInvalidState
	}

	text := ""
	if resp != nil {
		text = resp.Response
	}

	c.turns = append(c.turns, model.Turn{
		UserMessage: userMessage,
		BotResponse: text,
		Timestamp:   c.now(),
	})

	if resp.Terminal() {
		c.summary = resp.ConversationSummary
		c.state = StateEnded
	}

	return nil
}

// RecordUsage adds one exchange worth of tokens to the conversation's meter.
func (c *Conversation) RecordUsage(inputTokens, outputTokens int) {
	c.meter.Record(inputTokens, outputTokens)
}

// IsActive reports whether the conversation still accepts turns.
func (c *Conversation) IsActive() bool { return c.state == StateActive }

// State returns the lifecycle state.
func (c *Conversation) State() State { return c.state }

// Summary returns the terminal summary, or nil while active.
func (c *Conversation) Summary() *model.ConversationSummary { return c.summary }

// Turns returns a copy of the stored turns in chronological order.
func (c *Conversation) Turns() []model.Turn {
	return append([]model.Turn(nil), c.turns...)
}

// MessageCount is the number of stored turns.
func (c *Conversation) MessageCount() int { return len(c.turns) }

// LastTurn returns the most recent turn.
func (c *Conversation) LastTurn() (model.Turn, bool) {
	if len(c.turns) == 0 {
		return model.Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}

func (c *Conversation) UserID() string       { return c.userID }
func (c *Conversation) StartedAt() time.Time { return c.startedAt }
func (c *Conversation) Usage() *usage.Meter  { return c.meter }

// Duration is the wall time since the conversation started.
func (c *Conversation) Duration() time.Duration {
	return c.now().Sub(c.startedAt)
}
