package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/sentiment-support-agent/internal/middleware"
	"github.com/capitalize-ai/sentiment-support-agent/internal/service"
	"github.com/capitalize-ai/sentiment-support-agent/internal/store"
	"github.com/capitalize-ai/sentiment-support-agent/pkg/logger"
)

// ConversationHandler handles stored conversation endpoints.
type ConversationHandler struct {
	archive *service.ArchiveService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(archive *service.ArchiveService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		archive: archive,
		logger:  logger.OrGlobal(log),
	}
}

// storeError maps store failures to a response.
func (h *ConversationHandler) storeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, store.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, "document store not connected")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, store.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid conversation ID format")
	case errors.Is(err, service.ErrInvalidDirection):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, r).Error("failed to "+action, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	userID := r.URL.Query().Get("user_id")
	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.archive.Recent(r.Context(), userID, limit)
	if err != nil {
		h.storeError(w, r, err, "list conversations")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.archive.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, r, err, "get conversation")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Stats handles GET /api/v1/conversations/stats
func (h *ConversationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.archive.Stats(r.Context())
	if err != nil {
		h.storeError(w, r, err, "compute statistics")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Search handles GET /api/v1/conversations/search?direction=
func (h *ConversationHandler) Search(w http.ResponseWriter, r *http.Request) {
	direction := r.URL.Query().Get("direction")
	if direction == "" {
		writeError(w, http.StatusBadRequest, "direction is required")
		return
	}

	resp, err := h.archive.SearchByDirection(r.Context(), direction)
	if err != nil {
		h.storeError(w, r, err, "search conversations")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
