// Package meddic scores sales-qualification completeness against the
// six-field MEDDIC checklist.
package meddic

import (
	"math"
	"strings"
)

// Canonical MEDDIC field names. The order of Fields governs both the
// missing-field list and the order fields are requested from the user.
const (
	FieldMetrics          = "metrics"
	FieldEconomicBuyer    = "economic_buyer"
	FieldDecisionCriteria = "decision_criteria"
	FieldDecisionProcess  = "decision_process"
	FieldIdentifyPain     = "identify_pain"
	FieldChampion         = "champion"
)

// Fields is the canonical field order.
var Fields = []string{
	FieldMetrics,
	FieldEconomicBuyer,
	FieldDecisionCriteria,
	FieldDecisionProcess,
	FieldIdentifyPain,
	FieldChampion,
}

var displayNames = map[string]string{
	FieldMetrics:          "Metrics",
	FieldEconomicBuyer:    "Economic Buyer",
	FieldDecisionCriteria: "Decision Criteria",
	FieldDecisionProcess:  "Decision Process",
	FieldIdentifyPain:     "Identify Pain",
	FieldChampion:         "Champion",
}

var descriptions = map[string]string{
	FieldMetrics:          "quantifiable business metrics, KPIs, or ROI figures",
	FieldEconomicBuyer:    "person with budget authority or final sign-off",
	FieldDecisionCriteria: "criteria the prospect will use to evaluate solutions",
	FieldDecisionProcess:  "steps, timeline, and stakeholders in the decision process",
	FieldIdentifyPain:     "pain points, challenges, or problems discussed",
	FieldChampion:         "internal advocate who supports the solution",
}

// Completeness is the result of scoring a MEDDIC checklist.
type Completeness struct {
	Score         int      `json:"score"`
	MissingFields []string `json:"missing_fields"`
}

// Complete reports whether every checklist field is populated.
func (c Completeness) Complete() bool {
	return len(c.MissingFields) == 0
}

// Score computes qualification completeness from a checklist map. Fields
// whose value is empty or whitespace-only count as missing. Pure and total.
func Score(notes map[string]string) Completeness {
	missing := make([]string, 0, len(Fields))
	for _, f := range Fields {
		if strings.TrimSpace(notes[f]) == "" {
			missing = append(missing, f)
		}
	}

	filled := len(Fields) - len(missing)
	score := int(math.Round(100 * float64(filled) / float64(len(Fields))))

	return Completeness{Score: score, MissingFields: missing}
}

// DisplayName returns the human-facing name for a canonical field.
func DisplayName(field string) string {
	if name, ok := displayNames[field]; ok {
		return name
	}
	return field
}

// Description returns the one-line description used in prompts.
func Description(field string) string {
	return descriptions[field]
}

// IsCanonical reports whether field is one of the six checklist keys.
func IsCanonical(field string) bool {
	_, ok := displayNames[field]
	return ok
}
