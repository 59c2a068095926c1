package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dealflow-ai/qualification-platform/pkg/logger"
)

func TestValidateTranscript(t *testing.T) {
	assert.NoError(t, ValidateTranscript("a perfectly normal transcript"))
	assert.Error(t, ValidateTranscript(""))
	assert.Error(t, ValidateTranscript(strings.Repeat("x", 500001)))
	assert.Error(t, ValidateTranscript("bad \xff utf8"))
}

func TestValidateSessionKey(t *testing.T) {
	assert.NoError(t, ValidateSessionKey("C0123456789"))
	assert.NoError(t, ValidateSessionKey("channel:thread.1234_ab-cd"))
	assert.Error(t, ValidateSessionKey(""))
	assert.Error(t, ValidateSessionKey(strings.Repeat("a", 129)))
	assert.Error(t, ValidateSessionKey("has spaces"))
	assert.Error(t, ValidateSessionKey("slash/key"))
}

func signToken(t *testing.T, secret, tenantID string) string {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: tenantID,
		Scopes:   []string{"transcripts:write"},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthValidToken(t *testing.T) {
	const secret = "test-secret"
	var gotUser, gotTenant string

	handler := Auth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = GetUserID(r.Context())
		gotTenant = GetTenantID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcripts", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "tenant-1"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "user-1", gotUser)
	assert.Equal(t, "tenant-1", gotTenant)
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcripts", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	handler := Auth("right-secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transcripts", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret", "tenant-1"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireScopeGranted(t *testing.T) {
	const secret = "test-secret"
	handler := Auth(secret)(RequireScope(ScopeTranscriptsWrite)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "tenant-1"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireScopeDenied(t *testing.T) {
	const secret = "test-secret"
	// The signed token carries only transcripts:write.
	handler := Auth(secret)(RequireScope(ScopeSessionsRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "tenant-1"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestLoggingRecordsRequestFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := &logger.Logger{Logger: zap.New(core)}

	handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/C12345/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/v1/sessions/C12345/", fields["path"])
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.NotEmpty(t, fields["correlation_id"])
	assert.NotContains(t, fields, "tenant_id")
	assert.NotEmpty(t, rr.Header().Get("X-Correlation-ID"))
}
