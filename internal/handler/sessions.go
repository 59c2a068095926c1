package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dealflow-ai/qualification-platform/internal/conversation"
	"github.com/dealflow-ai/qualification-platform/internal/middleware"
	"github.com/dealflow-ai/qualification-platform/internal/session"
	"github.com/dealflow-ai/qualification-platform/pkg/logger"
)

// SessionHandler handles session endpoints.
type SessionHandler struct {
	manager *conversation.Manager
	store   session.Store
	logger  *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(manager *conversation.Manager, store session.Store, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		store:   store,
		logger:  log,
	}
}

// SendMessage handles POST /api/v1/sessions/{key}/messages
//
// Delivers a follow-up turn to an in-progress qualification session.
func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionKey := chi.URLParam(r, "key")

	if err := middleware.ValidateSessionKey(sessionKey); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTranscript(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.manager.HandleMessage(ctx, sessionKey, req.Text)
	if err != nil {
		h.logger.Error("failed to handle message",
			zap.String("session_key", sessionKey),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	status := http.StatusOK
	if reply.Kind == conversation.ReplyError {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, reply)
}

// Get handles GET /api/v1/sessions/{key}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionKey := chi.URLParam(r, "key")

	if err := middleware.ValidateSessionKey(sessionKey); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.store.Get(ctx, sessionKey)
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
		return
	case errors.Is(err, session.ErrExpired):
		writeError(w, http.StatusGone, "session expired; start a new conversation")
		return
	case err != nil:
		h.logger.Error("failed to load session",
			zap.String("session_key", sessionKey),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	writeJSON(w, http.StatusOK, sess)
}
