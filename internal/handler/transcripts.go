// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/dealflow-ai/qualification-platform/internal/conversation"
	"github.com/dealflow-ai/qualification-platform/internal/middleware"
	"github.com/dealflow-ai/qualification-platform/internal/model"
	"github.com/dealflow-ai/qualification-platform/pkg/logger"
)

// TranscriptHandler handles inbound conversation events.
type TranscriptHandler struct {
	manager *conversation.Manager
	logger  *logger.Logger
}

// NewTranscriptHandler creates a new transcript handler.
func NewTranscriptHandler(manager *conversation.Manager, log *logger.Logger) *TranscriptHandler {
	return &TranscriptHandler{
		manager: manager,
		logger:  log,
	}
}

// Ingest handles POST /api/v1/transcripts
//
// The body is an inbound conversation event: the channel/thread identifier
// plus the message text and optional attachment text. The reply is plain
// text: a created-records summary, a missing-fields prompt, or an error.
func (h *TranscriptHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var event model.InboundEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionKey := event.SessionKey()
	if err := middleware.ValidateSessionKey(sessionKey); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateTranscript(event.MessageText()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.manager.HandleMessage(ctx, sessionKey, event.MessageText())
	if err != nil {
		h.logger.Error("failed to handle transcript",
			zap.String("session_key", sessionKey),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to process transcript")
		return
	}

	status := http.StatusOK
	if reply.Kind == conversation.ReplyError {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, reply)
}
