package extract

import (
	"encoding/json"
	"strings"

	"github.com/dealflow-ai/qualification-platform/internal/meddic"
	"github.com/dealflow-ai/qualification-platform/internal/model"
)

// wireRecord is the fixed response schema for the text-understanding call.
// Decoding into it drops unknown top-level keys and any field outside the
// schema; missing sub-objects default to empty.
type wireRecord struct {
	Contact     wireContact       `json:"contact"`
	Account     wireAccount       `json:"account"`
	Opportunity wireOpportunity   `json:"opportunity"`
	MEDDIC      map[string]string `json:"meddic"`
}

type wireContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Title string `json:"title"`
	Phone string `json:"phone"`
}

type wireAccount struct {
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Size     string `json:"size"`
}

type wireOpportunity struct {
	Name      string `json:"name"`
	Stage     string `json:"stage"`
	Amount    string `json:"amount"`
	CloseDate string `json:"close_date"`
}

// Legacy key aliases the model sometimes emits for MEDDIC fields.
var meddicAliases = map[string]string{
	"metrics_notes":           meddic.FieldMetrics,
	"economic_buyers":         meddic.FieldEconomicBuyer,
	"economic_buyers_notes":   meddic.FieldEconomicBuyer,
	"decision_criteria_notes": meddic.FieldDecisionCriteria,
	"decision_process_notes":  meddic.FieldDecisionProcess,
	"identified_pain":         meddic.FieldIdentifyPain,
	"pain":                    meddic.FieldIdentifyPain,
}

// parseResponse turns raw model output into a partial record. The response
// is untrusted: markdown fences are stripped, non-JSON prose around the
// object is tolerated, and anything outside the fixed schema is dropped.
// Returns ErrMalformedResponse when zero usable fields survive.
func parseResponse(raw string) (*model.SalesCallRecord, error) {
	text := stripFences(raw)

	var wire wireRecord
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		// Fallback: take the outermost brace-delimited span and retry.
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return nil, ErrMalformedResponse
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &wire); err != nil {
			return nil, ErrMalformedResponse
		}
	}

	rec := model.NewSalesCallRecord()
	rec.Contact = model.Contact{
		Name:  strings.TrimSpace(wire.Contact.Name),
		Email: strings.TrimSpace(wire.Contact.Email),
		Title: strings.TrimSpace(wire.Contact.Title),
		Phone: strings.TrimSpace(wire.Contact.Phone),
	}
	rec.Account = model.Account{
		Name:     strings.TrimSpace(wire.Account.Name),
		Industry: strings.TrimSpace(wire.Account.Industry),
		Size:     strings.TrimSpace(wire.Account.Size),
	}
	rec.Opportunity = model.Opportunity{
		Name:      strings.TrimSpace(wire.Opportunity.Name),
		Stage:     strings.TrimSpace(wire.Opportunity.Stage),
		Amount:    strings.TrimSpace(wire.Opportunity.Amount),
		CloseDate: strings.TrimSpace(wire.Opportunity.CloseDate),
	}

	for k, v := range wire.MEDDIC {
		key := strings.ToLower(strings.TrimSpace(k))
		if canonical, ok := meddicAliases[key]; ok {
			key = canonical
		}
		if !meddic.IsCanonical(key) {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			rec.MEDDIC[key] = v
		}
	}

	if !hasUsableFields(rec) {
		return nil, ErrMalformedResponse
	}

	return rec, nil
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func hasUsableFields(rec *model.SalesCallRecord) bool {
	if len(rec.MEDDIC) > 0 {
		return true
	}
	for _, v := range []string{
		rec.Contact.Name, rec.Contact.Email, rec.Contact.Title, rec.Contact.Phone,
		rec.Account.Name, rec.Account.Industry, rec.Account.Size,
		rec.Opportunity.Name, rec.Opportunity.Stage, rec.Opportunity.Amount, rec.Opportunity.CloseDate,
	} {
		if v != "" {
			return true
		}
	}
	return false
}
