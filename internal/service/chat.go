// Package service drives conversations and answers archive queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/sentiment-support-agent/internal/conversation"
	"github.com/capitalize-ai/sentiment-support-agent/internal/llm"
	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
	"github.com/capitalize-ai/sentiment-support-agent/internal/store"
	"github.com/capitalize-ai/sentiment-support-agent/internal/usage"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/metrics"
)

const tracerName = "github.com/capitalize-ai/sentiment-support-agent/internal/service"

// ErrSpooled is returned when a save failed but the record was parked in
// the retry spool. The conversation data is not lost.
var ErrSpooled = errors.New("service: save failed, record spooled for retry")

// EventPublisher announces stored conversations.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, event *model.ConversationCompletedEvent) error
}

// Spool parks records whose save failed, along with the conversation's
// usage so the completion event can still be announced after a drain.
type Spool interface {
	Push(ctx context.Context, rec *model.Record, usage model.CostEstimate) error
}

// ChatConfig holds the completion settings for every exchange.
type ChatConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Rates       usage.Rates
}

// Deps are the collaborators shared by all chat sessions. Publisher and
// Spool are optional.
type Deps struct {
	Client    llm.Client
	Store     store.Store
	Publisher EventPublisher
	Spool     Spool
	Logger    *logger.Logger
	Clock     func() time.Time
}

// ChatService is the facade over one conversation: it builds the outbound
// history, runs the exchange, parses the reply, records usage and saves the
// finished conversation. Callers serialize their own calls.
type ChatService struct {
	deps   Deps
	cfg    ChatConfig
	logger *logger.Logger
	tracer trace.Tracer

	conv     *conversation.Conversation
	recordID string
	spooled  bool
}

// NewChatService starts a conversation for userID.
func NewChatService(deps Deps, cfg ChatConfig, userID string) *ChatService {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if cfg.Rates == (usage.Rates{}) {
		cfg.Rates = usage.DefaultRates
	}

	s := &ChatService{
		deps:   deps,
		cfg:    cfg,
		logger: logger.OrGlobal(deps.Logger),
		tracer: otel.Tracer(tracerName),
	}
	s.reset(userID)
	return s
}

func (s *ChatService) reset(userID string) {
	s.conv = conversation.New(userID,
		conversation.WithClock(s.deps.Clock),
		conversation.WithRates(s.cfg.Rates),
	)
	s.recordID = ""
	s.spooled = false
	metrics.ConversationsStarted.Inc()
}

// Restart retires the current conversation and starts a fresh one for the
// same user.
func (s *ChatService) Restart() {
	s.reset(s.conv.UserID())
}

// Conversation exposes the live conversation for read-only inspection.
func (s *ChatService) Conversation() *conversation.Conversation {
	return s.conv
}

// IsActive reports whether the conversation still accepts messages.
func (s *ChatService) IsActive() bool {
	return s.conv.IsActive()
}

// NeedsSave reports whether the conversation has ended but is neither
// saved nor spooled.
func (s *ChatService) NeedsSave() bool {
	return !s.conv.IsActive() && s.recordID == "" && !s.spooled
}

// SendMessage runs one turn. Model and decode failures become an apology
// turn and a nil error; only ErrInvalidState and llm.ErrInvalidCredentials
// are returned.
func (s *ChatService) SendMessage(ctx context.Context, text string) (*model.Response, error) {
	if !s.conv.IsActive() {
		return nil, conversation.ErrInvalidState
	}

	ctx, span := s.tracer.Start(ctx, "chat.send_message", trace.WithAttributes(
		attribute.String("user_id", s.conv.UserID()),
		attribute.Int("turn", s.conv.MessageCount()+1),
	))
	defer span.End()

	req := &llm.CompletionRequest{
		Model:       s.cfg.Model,
		Messages:    s.conv.Outbound(text),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		JSONMode:    true,
	}

	started := s.deps.Clock()
	completion, err := s.deps.Client.Complete(ctx, req)
	elapsed := s.deps.Clock().Sub(started).Seconds()

	var reply *model.Response
	outcome := "ok"

	switch {
	case errors.Is(err, llm.ErrInvalidCredentials):
		metrics.RecordCompletion(s.cfg.Model, "error", elapsed, 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid credentials")
		s.logger.Error("completion rejected credentials", zap.String("user_id", s.conv.UserID()), zap.Error(err))
		return nil, err

	case err != nil:
		metrics.RecordCompletion(s.cfg.Model, "error", elapsed, 0, 0)
		span.RecordError(err)
		s.logger.Warn("completion failed", zap.String("user_id", s.conv.UserID()), zap.Error(err))
		reply = &model.Response{Response: conversation.FallbackTransportResponse, Error: err.Error()}
		outcome = "transport_error"

	default:
		before := s.conv.Usage().Estimate().TotalCost
		s.conv.RecordUsage(completion.TokensIn, completion.TokensOut)
		metrics.RecordCompletion(s.cfg.Model, "success", elapsed, completion.TokensIn, completion.TokensOut)
		metrics.RecordCost(s.conv.Usage().Estimate().TotalCost - before)

		parsed, perr := conversation.ParseResponse(completion.Content)
		if perr != nil {
			metrics.ResponseParseFailures.Inc()
			span.RecordError(perr)
			s.logger.Warn("model response did not decode", zap.String("user_id", s.conv.UserID()), zap.Error(perr))
			reply = &model.Response{Response: conversation.FallbackParseResponse, Error: perr.Error()}
			outcome = "parse_error"
		} else {
			reply = parsed
			if len(parsed.Defaulted) > 0 {
				s.logger.Warn("summary fields defaulted",
					zap.String("user_id", s.conv.UserID()),
					zap.Strings("fields", parsed.Defaulted),
				)
			}
		}
	}

	if err := s.conv.AppendTurn(text, reply); err != nil {
		return nil, err
	}
	metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("outcome", outcome))

	if reply.Terminal() {
		direction := reply.ConversationSummary.Overall.Direction
		metrics.ConversationsCompleted.WithLabelValues(string(direction)).Inc()
		span.SetAttributes(attribute.Bool("terminal", true))
		s.logger.Info("conversation ended",
			zap.String("user_id", s.conv.UserID()),
			zap.Int("messages", s.conv.MessageCount()),
			zap.String("direction", string(direction)),
		)
	}

	return reply, nil
}

// EndConversation saves the finished conversation and returns its record
// id. It returns ("", nil) while there is no summary to save, and the same
// id on repeated calls after a successful save. On a failed write the error
// is returned and the record is spooled when a spool is configured.
func (s *ChatService) EndConversation(ctx context.Context) (string, error) {
	if s.recordID != "" {
		return s.recordID, nil
	}
	if s.spooled {
		return "", ErrSpooled
	}

	summary := s.conv.Summary()
	if summary == nil {
		return "", nil
	}

	ctx, span := s.tracer.Start(ctx, "chat.end_conversation")
	defer span.End()

	userID := s.conv.UserID()
	turns := s.conv.Turns()

	id, err := s.deps.Store.SaveCompleted(ctx, userID, turns, summary, s.conv.StartedAt())
	if err != nil {
		metrics.RecordSave("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		s.logger.Error("failed to save conversation", zap.String("user_id", userID), zap.Error(err))

		if s.spoolRecord(ctx, userID, turns, summary) {
			s.spooled = true
			return "", errors.Join(ErrSpooled, err)
		}
		return "", fmt.Errorf("save conversation: %w", err)
	}

	s.recordID = id
	metrics.RecordSave("ok")
	span.SetAttributes(attribute.String("record_id", id))
	s.logger.Info("conversation saved", zap.String("user_id", userID), zap.String("record_id", id))

	s.publishCompleted(ctx, id, summary)
	return id, nil
}

func (s *ChatService) spoolRecord(ctx context.Context, userID string, turns []model.Turn, summary *model.ConversationSummary) bool {
	if s.deps.Spool == nil {
		return false
	}

	rec, err := store.NewRecord(userID, turns, summary, s.conv.StartedAt(), s.deps.Clock())
	if err != nil {
		s.logger.Error("failed to map record for spool", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	if err := s.deps.Spool.Push(ctx, rec, s.conv.Usage().Estimate()); err != nil {
		s.logger.Error("failed to spool record", zap.String("user_id", userID), zap.Error(err))
		return false
	}

	metrics.RecordSave("spooled")
	s.logger.Warn("conversation spooled for retry", zap.String("user_id", userID))
	return true
}

func (s *ChatService) publishCompleted(ctx context.Context, recordID string, summary *model.ConversationSummary) {
	if s.deps.Publisher == nil {
		return
	}

	event := model.NewCompletedEvent(recordID, s.conv.UserID(), s.conv.MessageCount(),
		summary.Overall, s.conv.Usage().Estimate(), s.deps.Clock())

	if err := s.deps.Publisher.PublishCompleted(ctx, event); err != nil {
		s.logger.Warn("failed to publish completion event", zap.String("record_id", recordID), zap.Error(err))
	}
}

// Metrics returns the live counters of the conversation.
func (s *ChatService) Metrics() model.SessionMetrics {
	est := s.conv.Usage().Estimate()
	return model.SessionMetrics{
		MessageCount:    s.conv.MessageCount(),
		Tokens:          est.TotalTokens,
		Cost:            est.TotalCost,
		DurationSeconds: s.conv.Duration().Seconds(),
		Estimate:        est,
		Active:          s.conv.IsActive(),
	}
}

// Cost returns the full cost estimate.
func (s *ChatService) Cost() model.CostEstimate {
	return s.conv.Usage().Estimate()
}
