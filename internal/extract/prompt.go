package extract

import (
	"fmt"
	"strings"

	"github.com/dealflow-ai/qualification-platform/internal/meddic"
	"github.com/dealflow-ai/qualification-platform/internal/model"
)

const systemPrompt = `You are a sales data extraction assistant. You read sales-call transcripts and follow-up answers from sales reps and return structured JSON. Return ONLY a JSON object, no additional text.`

const schemaBlock = `Return the data as a JSON object with this exact structure. Every field is optional: omit anything the text does not support. Do not invent values.
{
    "contact": {"name": "...", "email": "...", "title": "...", "phone": "..."},
    "account": {"name": "...", "industry": "...", "size": "..."},
    "opportunity": {"name": "...", "stage": "...", "amount": "...", "close_date": "..."},
    "meddic": {
        "metrics": "...",
        "economic_buyer": "...",
        "decision_criteria": "...",
        "decision_process": "...",
        "identify_pain": "...",
        "champion": "..."
    }
}`

// transcriptPrompt builds the first-turn extraction prompt.
func transcriptPrompt(transcript string) string {
	var b strings.Builder

	b.WriteString("Extract all relevant sales information from the following call transcript.\n\n")
	b.WriteString("CONTACT: name, email, job title, phone.\n")
	b.WriteString("ACCOUNT: company name, industry, company size.\n")
	b.WriteString("OPPORTUNITY: deal name, stage, amount, expected close date.\n")
	b.WriteString("MEDDIC QUALIFICATION:\n")
	for _, f := range meddic.Fields {
		fmt.Fprintf(&b, "- %s: %s\n", f, meddic.Description(f))
	}
	b.WriteString("\n")
	b.WriteString(schemaBlock)
	b.WriteString("\n\nTRANSCRIPT:\n")
	b.WriteString(transcript)

	return b.String()
}

// followUpPrompt builds the prompt for a follow-up turn. The known record is
// included so the model extracts only the delta relevant to the outstanding
// fields.
func followUpPrompt(text string, known *model.SalesCallRecord) string {
	missing := meddic.Score(known.MEDDIC).MissingFields

	var b strings.Builder

	b.WriteString("A sales rep is answering questions about missing qualification fields. Extract values for the outstanding fields from their reply.\n\n")
	b.WriteString("Outstanding fields:\n")
	for _, f := range missing {
		fmt.Fprintf(&b, "- %s: %s\n", f, meddic.Description(f))
	}

	var knownLines []string
	for _, f := range meddic.Fields {
		if v := strings.TrimSpace(known.MEDDIC[f]); v != "" {
			knownLines = append(knownLines, fmt.Sprintf("- %s: %s", f, v))
		}
	}
	if len(knownLines) > 0 {
		b.WriteString("\nAlready known (do not re-extract):\n")
		b.WriteString(strings.Join(knownLines, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(schemaBlock)
	b.WriteString("\n\nOnly include fields you can clearly extract from the reply.\n\nREPLY:\n")
	b.WriteString(text)

	return b.String()
}
