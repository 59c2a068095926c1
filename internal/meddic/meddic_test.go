package meddic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreEmpty(t *testing.T) {
	comp := Score(map[string]string{})

	assert.Equal(t, 0, comp.Score)
	assert.Equal(t, Fields, comp.MissingFields)
	assert.False(t, comp.Complete())
}

func TestScoreNilMap(t *testing.T) {
	comp := Score(nil)

	assert.Equal(t, 0, comp.Score)
	assert.Len(t, comp.MissingFields, 6)
}

func TestScorePartial(t *testing.T) {
	tests := []struct {
		name   string
		filled []string
		want   int
	}{
		{"one field", []string{FieldMetrics}, 17},
		{"two fields", []string{FieldMetrics, FieldChampion}, 33},
		{"three fields", []string{FieldMetrics, FieldEconomicBuyer, FieldChampion}, 50},
		{"four fields", []string{FieldMetrics, FieldEconomicBuyer, FieldDecisionCriteria, FieldChampion}, 67},
		{"five fields", []string{FieldMetrics, FieldEconomicBuyer, FieldDecisionCriteria, FieldDecisionProcess, FieldChampion}, 83},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes := make(map[string]string)
			for _, f := range tt.filled {
				notes[f] = "some value"
			}

			comp := Score(notes)
			assert.Equal(t, tt.want, comp.Score)
			assert.Len(t, comp.MissingFields, 6-len(tt.filled))
			assert.False(t, comp.Complete())
		})
	}
}

func TestScoreComplete(t *testing.T) {
	notes := make(map[string]string)
	for _, f := range Fields {
		notes[f] = "filled in"
	}

	comp := Score(notes)
	assert.Equal(t, 100, comp.Score)
	assert.Empty(t, comp.MissingFields)
	assert.True(t, comp.Complete())
}

func TestScoreWhitespaceCountsAsMissing(t *testing.T) {
	notes := map[string]string{
		FieldMetrics:       "   \t\n",
		FieldEconomicBuyer: "the CFO",
	}

	comp := Score(notes)
	assert.Equal(t, 17, comp.Score)
	assert.Contains(t, comp.MissingFields, FieldMetrics)
	assert.NotContains(t, comp.MissingFields, FieldEconomicBuyer)
}

func TestScoreIgnoresUnknownKeys(t *testing.T) {
	notes := map[string]string{
		"budget":     "500k",
		FieldMetrics: "30% cost reduction",
	}

	comp := Score(notes)
	assert.Equal(t, 17, comp.Score)
}

func TestMissingFieldsCanonicalOrder(t *testing.T) {
	// Fill the middle two; the missing list must keep canonical order.
	notes := map[string]string{
		FieldDecisionCriteria: "security and price",
		FieldDecisionProcess:  "committee review in Q3",
	}

	comp := Score(notes)
	require.Equal(t, []string{
		FieldMetrics,
		FieldEconomicBuyer,
		FieldIdentifyPain,
		FieldChampion,
	}, comp.MissingFields)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Economic Buyer", DisplayName(FieldEconomicBuyer))
	assert.Equal(t, "Identify Pain", DisplayName(FieldIdentifyPain))
	assert.Equal(t, "unknown_field", DisplayName("unknown_field"))
}

func TestIsCanonical(t *testing.T) {
	for _, f := range Fields {
		assert.True(t, IsCanonical(f), f)
	}
	assert.False(t, IsCanonical("metrics_notes"))
	assert.False(t, IsCanonical(""))
}
