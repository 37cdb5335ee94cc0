package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/sentiment-support-agent/internal/conversation"
	"github.com/capitalize-ai/sentiment-support-agent/internal/llm"
	"github.com/capitalize-ai/sentiment-support-agent/internal/middleware"
	"github.com/capitalize-ai/sentiment-support-agent/internal/model"
	"github.com/capitalize-ai/sentiment-support-agent/internal/service"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
)

// SessionHandler handles live conversation endpoints.
type SessionHandler struct {
	registry *service.SessionRegistry
	logger   *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(registry *service.SessionRegistry, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		logger:   logger.OrGlobal(log),
	}
}

// session resolves the {id} URL parameter, writing the error response when
// it does not name a live session.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	sess, err := h.registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

// Start handles POST /api/v1/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req model.StartSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateUserID(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := h.registry.Start(req.UserID)

	var userID string
	_ = sess.Do(func(chat *service.ChatService) error {
		userID = chat.Conversation().UserID()
		return nil
	})

	writeJSON(w, http.StatusCreated, model.StartSessionResponse{
		SessionID: sess.ID,
		UserID:    userID,
		StartedAt: sess.CreatedAt,
	})
}

// Send handles POST /api/v1/sessions/{id}/messages
func (h *SessionHandler) Send(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var out model.SendMessageResponse
	err := sess.Do(func(chat *service.ChatService) error {
		resp, err := chat.SendMessage(r.Context(), req.Content)
		if err != nil {
			return err
		}
		out = model.SendMessageResponse{
			Response:            resp.Response,
			ConversationSummary: resp.ConversationSummary,
			Error:               resp.Error,
			Active:              chat.IsActive(),
			MessageCount:        chat.Conversation().MessageCount(),
		}
		return nil
	})

	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
		return
	case errors.Is(err, conversation.ErrInvalidState):
		writeError(w, http.StatusConflict, "conversation has ended")
		return
	case errors.Is(err, llm.ErrInvalidCredentials):
		requestLogger(h.logger, r).Error("completion endpoint rejected credentials", zap.String("session_id", sess.ID))
		writeError(w, http.StatusBadGateway, "completion endpoint rejected credentials")
		return
	case err != nil:
		requestLogger(h.logger, r).Error("failed to send message", zap.String("session_id", sess.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// End handles POST /api/v1/sessions/{id}/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var (
		recordID string
		cost     model.CostEstimate
	)
	err := sess.Do(func(chat *service.ChatService) error {
		var err error
		recordID, err = chat.EndConversation(r.Context())
		cost = chat.Cost()
		return err
	})

	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
		return
	case errors.Is(err, service.ErrSpooled):
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "spooled",
			"reason": "document store unavailable, saved for retry",
		})
		return
	case err != nil:
		requestLogger(h.logger, r).Error("failed to save conversation", zap.String("session_id", sess.ID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "failed to save conversation")
		return
	case recordID == "":
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.registry.Remove(sess.ID)
	writeJSON(w, http.StatusOK, model.EndSessionResponse{RecordID: recordID, Cost: cost})
}

// Metrics handles GET /api/v1/sessions/{id}/metrics
func (h *SessionHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var m model.SessionMetrics
	if err := sess.Do(func(chat *service.ChatService) error {
		m = chat.Metrics()
		return nil
	}); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, m)
}
