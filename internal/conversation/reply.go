package conversation

import (
	"fmt"
	"strings"

	"github.com/dealflow-ai/qualification-platform/internal/meddic"
	"github.com/dealflow-ai/qualification-platform/internal/model"
)

// ReplyKind classifies an outbound reply.
type ReplyKind string

const (
	ReplySummary ReplyKind = "summary"
	ReplyPrompt  ReplyKind = "prompt"
	ReplyError   ReplyKind = "error"
)

// Reply is the plain-text outcome of handling one inbound message.
type Reply struct {
	Kind             ReplyKind                   `json:"kind"`
	Text             string                      `json:"text"`
	State            model.State                 `json:"state"`
	Score            int                         `json:"score"`
	MissingFields    []string                    `json:"missing_fields,omitempty"`
	CreatedRecordIDs map[model.ObjectType]string `json:"created_record_ids,omitempty"`
	Errors           []model.RecordError         `json:"errors,omitempty"`
}

// renderPrompt enumerates the missing fields in canonical order with their
// one-line descriptions.
func renderPrompt(missing []string, score int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "MEDDIC qualification is %d%% complete. Please provide the following:\n", score)
	for _, f := range missing {
		fmt.Fprintf(&b, "- %s: %s\n", meddic.DisplayName(f), meddic.Description(f))
	}
	b.WriteString("You can answer one field at a time or all together.")
	return b.String()
}

// renderSummary states plainly what was created and what failed.
func renderSummary(ids map[model.ObjectType]string, errs []model.RecordError) string {
	var b strings.Builder
	b.WriteString("Qualification complete.")

	order := []model.ObjectType{model.ObjectAccount, model.ObjectContact, model.ObjectOpportunity}
	var created []string
	for _, obj := range order {
		if id := ids[obj]; id != "" {
			created = append(created, fmt.Sprintf("%s (%s)", obj, id))
		}
	}
	if len(created) > 0 {
		b.WriteString(" Records created: ")
		b.WriteString(strings.Join(created, ", "))
		b.WriteString(".")
	}
	if len(errs) > 0 {
		b.WriteString("\nSome records could not be written:\n")
		for _, e := range errs {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", e.Object, e.Message, e.Code)
		}
		b.WriteString("Already-created records are kept; resend the transcript to retry the failed steps.")
	}
	return b.String()
}

func renderFailure(reason string, rec *model.SalesCallRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I could not process that message: %s.\n", reason)

	comp := meddic.Score(rec.MEDDIC)
	filled := len(meddic.Fields) - len(comp.MissingFields)
	if filled > 0 {
		fmt.Fprintf(&b, "The %d qualification field(s) collected so far are preserved. ", filled)
	}
	b.WriteString("Start a new conversation to try again.")
	return b.String()
}
