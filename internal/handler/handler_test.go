package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealflow-ai/qualification-platform/internal/conversation"
	"github.com/dealflow-ai/qualification-platform/internal/crm"
	"github.com/dealflow-ai/qualification-platform/internal/meddic"
	"github.com/dealflow-ai/qualification-platform/internal/model"
	"github.com/dealflow-ai/qualification-platform/internal/session"
	"github.com/dealflow-ai/qualification-platform/pkg/logger"
)

type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, text string, known *model.SalesCallRecord) (*model.SalesCallRecord, error) {
	rec := model.NewSalesCallRecord()
	for _, f := range meddic.Fields {
		rec.MEDDIC[f] = "from " + text
	}
	rec.Account.Name = "Acme Corp"
	return rec, nil
}

type stubWriter struct{}

func (stubWriter) Commit(ctx context.Context, rec *model.SalesCallRecord, existing map[model.ObjectType]string) *crm.CommitResult {
	return &crm.CommitResult{
		CreatedRecordIDs: map[model.ObjectType]string{
			model.ObjectAccount:     "001abc",
			model.ObjectOpportunity: "006abc",
		},
	}
}

func newTestRouter(t *testing.T) (*chi.Mux, session.Store) {
	store := session.NewMemoryStore(0)
	manager := conversation.NewManager(store, stubExtractor{}, stubWriter{}, nil,
		30*time.Minute, time.Hour, logger.NewNop())

	r := chi.NewRouter()
	th := NewTranscriptHandler(manager, logger.NewNop())
	sh := NewSessionHandler(manager, store, logger.NewNop())
	r.Post("/api/v1/transcripts", th.Ingest)
	r.Route("/api/v1/sessions/{key}", func(r chi.Router) {
		r.Get("/", sh.Get)
		r.Post("/messages", sh.SendMessage)
	})
	return r, store
}

func TestIngestTranscript(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `{"channel_id": "C12345", "text": "the call transcript"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcripts", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var reply conversation.Reply
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reply))
	assert.Equal(t, conversation.ReplySummary, reply.Kind)
	assert.Equal(t, model.StateComplete, reply.State)
	assert.Equal(t, "001abc", reply.CreatedRecordIDs[model.ObjectAccount])
}

func TestIngestRejectsBadBody(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcripts", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIngestRejectsInvalidSessionKey(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `{"channel_id": "bad key!", "text": "hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcripts", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSendMessage(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `{"text": "follow-up answer"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/C12345/messages", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var reply conversation.Reply
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reply))
	assert.Equal(t, conversation.ReplySummary, reply.Kind)
}

func TestGetSession(t *testing.T) {
	r, store := newTestRouter(t)

	sess := model.NewSession("C12345", time.Now())
	sess.State = model.StateAwaitingFields
	require.NoError(t, store.Put(context.Background(), sess))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/C12345/", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var got model.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "C12345", got.SessionKey)
	assert.Equal(t, model.StateAwaitingFields, got.State)
}

func TestGetSessionNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/absent/", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
