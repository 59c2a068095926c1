package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealflow-ai/qualification-platform/internal/meddic"
	"github.com/dealflow-ai/qualification-platform/internal/model"
	"github.com/dealflow-ai/qualification-platform/pkg/logger"
)

// sfServer fakes the two Salesforce endpoints the client talks to: the OAuth
// token exchange and the sobjects API.
type sfServer struct {
	*httptest.Server

	tokenCalls  int
	lastPayload map[string]any
	lastPath    string
	lastMethod  string

	// respond overrides the default 201 created response for sobjects calls.
	respond func(w http.ResponseWriter, r *http.Request)
}

func newSFServer(t *testing.T) *sfServer {
	s := &sfServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/services/oauth2/token" {
			s.tokenCalls++
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
			return
		}

		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		s.lastPath = r.URL.Path
		s.lastMethod = r.Method
		s.lastPayload = nil
		_ = json.NewDecoder(r.Body).Decode(&s.lastPayload)

		if s.respond != nil {
			s.respond(w, r)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "001xyz", "success": true})
	}))
	t.Cleanup(s.Close)
	return s
}

func newSFClient(s *sfServer) *Salesforce {
	return NewSalesforce(SalesforceConfig{
		InstanceURL:  s.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
		RefreshToken: "rtok",
	}, logger.NewNop())
}

func TestSalesforceCreateAccount(t *testing.T) {
	srv := newSFServer(t)
	sf := newSFClient(srv)

	id, err := sf.CreateAccount(context.Background(), model.Account{
		Name:     "Acme Corp",
		Industry: "Manufacturing",
		Size:     "500",
	})
	require.NoError(t, err)

	assert.Equal(t, "001xyz", id)
	assert.Equal(t, "/services/data/v59.0/sobjects/Account", srv.lastPath)
	assert.Equal(t, "Acme Corp", srv.lastPayload["Name"])
	assert.Equal(t, float64(500), srv.lastPayload["NumberOfEmployees"])
	assert.Equal(t, 1, srv.tokenCalls, "token fetched lazily on first call")
}

func TestSalesforceCreateAccountNonNumericSize(t *testing.T) {
	srv := newSFServer(t)
	sf := newSFClient(srv)

	_, err := sf.CreateAccount(context.Background(), model.Account{
		Name: "Acme Corp",
		Size: "mid-market",
	})
	require.NoError(t, err)

	assert.NotContains(t, srv.lastPayload, "NumberOfEmployees")
	assert.Equal(t, "Company size: mid-market", srv.lastPayload["Description"])
}

func TestSalesforceCreateContactSplitsName(t *testing.T) {
	srv := newSFServer(t)
	sf := newSFClient(srv)

	_, err := sf.CreateContact(context.Background(), model.Contact{
		Name:  "Sarah Jane Chen",
		Email: "sarah@acme.com",
	}, "001abc")
	require.NoError(t, err)

	assert.Equal(t, "Sarah Jane", srv.lastPayload["FirstName"])
	assert.Equal(t, "Chen", srv.lastPayload["LastName"])
	assert.Equal(t, "001abc", srv.lastPayload["AccountId"])
}

func TestSalesforceCreateOpportunityDefaultsAndMEDDIC(t *testing.T) {
	srv := newSFServer(t)
	sf := newSFClient(srv)

	_, err := sf.CreateOpportunity(context.Background(), model.Opportunity{
		Name:   "Acme Corp - Platform Deal",
		Amount: "$250,000.50",
	}, "001abc", "003abc", map[string]string{
		meddic.FieldChampion: "Sarah",
		meddic.FieldMetrics:  "30% faster",
		"not_a_field":        "dropped",
	})
	require.NoError(t, err)

	assert.Equal(t, "Identified", srv.lastPayload["StageName"], "stage defaults when absent")
	assert.Equal(t, "Sarah", srv.lastPayload["MEDDIC_Champion__c"])
	assert.Equal(t, "30% faster", srv.lastPayload["MEDDIC_Metrics_Notes__c"])
	assert.NotContains(t, srv.lastPayload, "not_a_field")
}

func TestSalesforceAmountParsing(t *testing.T) {
	srv := newSFServer(t)
	sf := newSFClient(srv)

	_, err := sf.CreateOpportunity(context.Background(), model.Opportunity{
		Name:   "Deal",
		Amount: "around 250k",
	}, "", "", nil)
	require.NoError(t, err)

	assert.NotContains(t, srv.lastPayload, "Amount", "unparseable amounts are omitted")
}

func TestSalesforceUpdateOpportunityMEDDIC(t *testing.T) {
	srv := newSFServer(t)
	srv.respond = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
	sf := newSFClient(srv)

	err := sf.UpdateOpportunityMEDDIC(context.Background(), "006abc", map[string]string{
		meddic.FieldChampion: "Sarah",
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, srv.lastMethod)
	assert.Equal(t, "/services/data/v59.0/sobjects/Opportunity/006abc", srv.lastPath)
	assert.Equal(t, "Sarah", srv.lastPayload["MEDDIC_Champion__c"])
}

func TestSalesforceUpdateEmptyMEDDICNoCall(t *testing.T) {
	srv := newSFServer(t)
	sf := newSFClient(srv)

	err := sf.UpdateOpportunityMEDDIC(context.Background(), "006abc", map[string]string{
		"unknown": "dropped",
	})
	require.NoError(t, err)
	assert.Empty(t, srv.lastPath, "nothing to write means no request")
}

func TestSalesforceErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		errorCode string
		message   string
		want      ErrorCode
	}{
		{"invalid session", http.StatusForbidden, "INVALID_SESSION_ID", "session expired", CodeAuthExpired},
		{"invalid field", http.StatusBadRequest, "INVALID_FIELD", "No such column 'MEDDIC_Champion__c'", CodeFieldNotFound},
		{"required field missing", http.StatusBadRequest, "REQUIRED_FIELD_MISSING", "Required fields are missing: [Name]", CodeValidationFailed},
		{"request limit", http.StatusServiceUnavailable, "REQUEST_LIMIT_EXCEEDED", "TotalRequests limit exceeded", CodeRateLimited},
		{"unknown", http.StatusInternalServerError, "UNKNOWN_EXCEPTION", "boom", CodeCreateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSFServer(t)
			srv.respond = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode([]map[string]string{
					{"message": tt.message, "errorCode": tt.errorCode},
				})
			}
			sf := newSFClient(srv)

			_, err := sf.CreateAccount(context.Background(), model.Account{Name: "Acme Corp"})
			require.Error(t, err)
			assert.Equal(t, tt.want, CodeOf(err))

			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.message, ce.Message)
		})
	}
}

func TestSalesforceRateLimited429(t *testing.T) {
	srv := newSFServer(t)
	srv.respond = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}
	sf := newSFClient(srv)

	_, err := sf.CreateAccount(context.Background(), model.Account{Name: "Acme Corp"})
	require.Error(t, err)
	assert.Equal(t, CodeRateLimited, CodeOf(err))
}

func TestSalesforceRefreshesTokenOn401(t *testing.T) {
	tokenCalls := 0
	sobjectCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/services/oauth2/token" {
			tokenCalls++
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
			return
		}
		sobjectCalls++
		if sobjectCalls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "001xyz", "success": true})
	}))
	defer srv.Close()

	sf := NewSalesforce(SalesforceConfig{
		InstanceURL:  srv.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
		RefreshToken: "rtok",
	}, logger.NewNop())

	id, err := sf.CreateAccount(context.Background(), model.Account{Name: "Acme Corp"})
	require.NoError(t, err)
	assert.Equal(t, "001xyz", id)
	assert.Equal(t, 2, tokenCalls, "401 forces one token refresh")
	assert.Equal(t, 2, sobjectCalls)
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in, first, last string
	}{
		{"Sarah Chen", "Sarah", "Chen"},
		{"Sarah Jane Chen", "Sarah Jane", "Chen"},
		{"Cher", "", "Cher"},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := splitName(tt.in)
		assert.Equal(t, tt.first, first, tt.in)
		assert.Equal(t, tt.last, last, tt.in)
	}
}
