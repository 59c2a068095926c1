package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dealflow-ai/qualification-platform/internal/meddic"
	"github.com/dealflow-ai/qualification-platform/internal/model"
	"github.com/dealflow-ai/qualification-platform/pkg/logger"
	"github.com/dealflow-ai/qualification-platform/pkg/metrics"
)

const apiVersion = "v59.0"

// meddicFieldAPI maps canonical checklist names to the Opportunity custom
// field API names.
var meddicFieldAPI = map[string]string{
	meddic.FieldMetrics:          "MEDDIC_Metrics_Notes__c",
	meddic.FieldEconomicBuyer:    "MEDDIC_Economic_Buyers_Notes__c",
	meddic.FieldDecisionCriteria: "MEDDIC_Decision_Criteria_Notes__c",
	meddic.FieldDecisionProcess:  "MEDDIC_Decision_Process_Notes__c",
	meddic.FieldIdentifyPain:     "MEDDIC_Identified_Pain__c",
	meddic.FieldChampion:         "MEDDIC_Champion__c",
}

// SalesforceConfig holds OAuth refresh-token credentials.
type SalesforceConfig struct {
	InstanceURL  string
	ClientID     string
	ClientSecret string
	RefreshToken string
	Timeout      time.Duration
}

// Salesforce is a REST client for the Salesforce sobjects API using the
// OAuth refresh-token flow.
type Salesforce struct {
	cfg        SalesforceConfig
	httpClient *http.Client
	logger     *logger.Logger

	mu          sync.Mutex
	accessToken string
	instanceURL string
}

// NewSalesforce creates a Salesforce client. The access token is acquired
// lazily and refreshed when rejected.
func NewSalesforce(cfg SalesforceConfig, log *logger.Logger) *Salesforce {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Salesforce{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      log,
		instanceURL: strings.TrimSuffix(cfg.InstanceURL, "/"),
	}
}

// CreateAccount creates an Account record.
func (s *Salesforce) CreateAccount(ctx context.Context, acc model.Account) (string, error) {
	payload := map[string]any{"Name": acc.Name}
	if acc.Industry != "" {
		payload["Industry"] = acc.Industry
	}
	if acc.Size != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(acc.Size)); err == nil {
			payload["NumberOfEmployees"] = n
		} else {
			payload["Description"] = "Company size: " + acc.Size
		}
	}
	return s.create(ctx, model.ObjectAccount, "Account", payload)
}

// CreateContact creates a Contact record linked to an Account.
func (s *Salesforce) CreateContact(ctx context.Context, c model.Contact, accountID string) (string, error) {
	first, last := splitName(c.Name)
	payload := map[string]any{"LastName": last}
	if first != "" {
		payload["FirstName"] = first
	}
	if c.Email != "" {
		payload["Email"] = c.Email
	}
	if c.Phone != "" {
		payload["Phone"] = c.Phone
	}
	if c.Title != "" {
		payload["Title"] = c.Title
	}
	if accountID != "" {
		payload["AccountId"] = accountID
	}
	return s.create(ctx, model.ObjectContact, "Contact", payload)
}

// CreateOpportunity creates an Opportunity with MEDDIC notes written as
// named custom attributes.
func (s *Salesforce) CreateOpportunity(ctx context.Context, opp model.Opportunity, accountID, contactID string, meddicNotes map[string]string) (string, error) {
	stage := opp.Stage
	if stage == "" {
		stage = "Identified"
	}
	payload := map[string]any{
		"Name":      opp.Name,
		"StageName": stage,
	}
	if opp.Amount != "" {
		if amount, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(opp.Amount, "$")), 64); err == nil {
			payload["Amount"] = amount
		}
	}
	if opp.CloseDate != "" {
		payload["CloseDate"] = opp.CloseDate
	}
	if accountID != "" {
		payload["AccountId"] = accountID
	}
	if contactID != "" {
		payload["ContactId"] = contactID
	}
	for field, value := range meddicNotes {
		if api, ok := meddicFieldAPI[field]; ok && strings.TrimSpace(value) != "" {
			payload[api] = value
		}
	}
	return s.create(ctx, model.ObjectOpportunity, "Opportunity", payload)
}

// UpdateOpportunityMEDDIC updates only the MEDDIC attributes of an existing
// Opportunity.
func (s *Salesforce) UpdateOpportunityMEDDIC(ctx context.Context, opportunityID string, meddicNotes map[string]string) error {
	payload := map[string]any{}
	for field, value := range meddicNotes {
		if api, ok := meddicFieldAPI[field]; ok && strings.TrimSpace(value) != "" {
			payload[api] = value
		}
	}
	if len(payload) == 0 {
		return nil
	}
	return s.update(ctx, model.ObjectOpportunity, "Opportunity", opportunityID, payload)
}

func (s *Salesforce) create(ctx context.Context, object model.ObjectType, sobject string, payload map[string]any) (string, error) {
	endpoint := fmt.Sprintf("%s/services/data/%s/sobjects/%s", s.instanceURL, apiVersion, sobject)

	var result struct {
		ID      string `json:"id"`
		Success bool   `json:"success"`
	}
	if err := s.do(ctx, object, http.MethodPost, endpoint, payload, &result); err != nil {
		metrics.RecordCRMCall(string(object), "create", string(CodeOf(err)))
		return "", err
	}
	metrics.RecordCRMCall(string(object), "create", "ok")
	return result.ID, nil
}

func (s *Salesforce) update(ctx context.Context, object model.ObjectType, sobject, id string, payload map[string]any) error {
	endpoint := fmt.Sprintf("%s/services/data/%s/sobjects/%s/%s", s.instanceURL, apiVersion, sobject, id)
	if err := s.do(ctx, object, http.MethodPatch, endpoint, payload, nil); err != nil {
		metrics.RecordCRMCall(string(object), "update", string(CodeOf(err)))
		return err
	}
	metrics.RecordCRMCall(string(object), "update", "ok")
	return nil
}

// do executes one sobjects call, refreshing the access token once on a 401.
func (s *Salesforce) do(ctx context.Context, object model.ObjectType, method, endpoint string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Object: object, Code: CodeCreateFailed, Message: err.Error()}
	}

	for attempt := 0; attempt < 2; attempt++ {
		token, err := s.token(ctx, attempt > 0)
		if err != nil {
			return &Error{Object: object, Code: CodeAuthExpired, Message: err.Error()}
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return &Error{Object: object, Code: CodeCreateFailed, Message: err.Error()}
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return &Error{Object: object, Code: CodeCreateFailed, Message: err.Error()}
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			// Stale token; refresh and retry once.
			continue
		case resp.StatusCode == http.StatusTooManyRequests:
			return &Error{Object: object, Code: CodeRateLimited, Message: string(respBody)}
		case resp.StatusCode >= 400:
			return s.apiError(object, resp.StatusCode, respBody)
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return &Error{Object: object, Code: CodeCreateFailed, Message: "unexpected response: " + err.Error()}
			}
		}
		return nil
	}

	return &Error{Object: object, Code: CodeAuthExpired, Message: "access token rejected after refresh"}
}

// apiError maps a Salesforce error payload ([{"message","errorCode"}]) to a
// structured failure.
func (s *Salesforce) apiError(object model.ObjectType, status int, body []byte) error {
	var sfErrs []struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	}
	message := string(body)
	errorCode := ""
	if err := json.Unmarshal(body, &sfErrs); err == nil && len(sfErrs) > 0 {
		message = sfErrs[0].Message
		errorCode = sfErrs[0].ErrorCode
	}

	code := CodeCreateFailed
	switch {
	case errorCode == "INVALID_SESSION_ID" || status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = CodeAuthExpired
	case errorCode == "INVALID_FIELD" || errorCode == "INVALID_FIELD_FOR_INSERT_UPDATE" ||
		strings.Contains(message, "No such column"):
		code = CodeFieldNotFound
	case errorCode == "REQUIRED_FIELD_MISSING" || errorCode == "FIELD_CUSTOM_VALIDATION_EXCEPTION" ||
		errorCode == "FIELD_INTEGRITY_EXCEPTION" || status == http.StatusBadRequest:
		code = CodeValidationFailed
	case errorCode == "REQUEST_LIMIT_EXCEEDED":
		code = CodeRateLimited
	}

	s.logger.Warn("salesforce call failed",
		zap.String("object", string(object)),
		zap.Int("status", status),
		zap.String("error_code", errorCode))

	return &Error{Object: object, Code: code, Message: message}
}

// token returns a cached access token, exchanging the refresh token when the
// cache is empty or force is set.
func (s *Salesforce) token(ctx context.Context, force bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && !force {
		return s.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {s.cfg.ClientID},
		"client_secret": {s.cfg.ClientSecret},
		"refresh_token": {s.cfg.RefreshToken},
	}
	endpoint := s.instanceURL + "/services/oauth2/token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token refresh rejected: %s", strings.TrimSpace(string(body)))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		InstanceURL string `json:"instance_url"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("token response malformed: %w", err)
	}

	s.accessToken = tokenResp.AccessToken
	if tokenResp.InstanceURL != "" {
		s.instanceURL = strings.TrimSuffix(tokenResp.InstanceURL, "/")
	}
	return s.accessToken, nil
}

// splitName splits a full name into first and last. A single token becomes
// the last name; Salesforce requires LastName.
func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}
