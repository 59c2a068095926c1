package crm

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dealflow-ai/qualification-platform/internal/model"
	"github.com/dealflow-ai/qualification-platform/pkg/logger"
	"github.com/dealflow-ai/qualification-platform/pkg/metrics"
)

// CommitResult reports what a commit created and what failed.
type CommitResult struct {
	CreatedRecordIDs map[model.ObjectType]string `json:"created_record_ids"`
	Errors           []model.RecordError         `json:"errors"`
}

// OK reports whether the commit completed without errors.
func (r *CommitResult) OK() bool {
	return len(r.Errors) == 0
}

// Writer performs ordered, dependency-aware record creation against the CRM.
// Write order is fixed: Account, then Contact, then Opportunity. Already-
// created IDs are reused, making repeated commits idempotent with respect to
// succeeded steps. Earlier successes are never rolled back: partial CRM
// state is more useful to an operator than silent deletion.
type Writer struct {
	client Client
	logger *logger.Logger
	now    func() time.Time
}

// NewWriter creates a record writer.
func NewWriter(client Client, log *logger.Logger) *Writer {
	return &Writer{client: client, logger: log, now: time.Now}
}

// Commit writes the record's Account, Contact, and Opportunity. existing
// carries IDs from earlier commits for the same session; steps with a known
// ID are skipped. When the Opportunity ID is already known the call becomes
// an update restricted to the MEDDIC attributes.
func (w *Writer) Commit(ctx context.Context, rec *model.SalesCallRecord, existing map[model.ObjectType]string) *CommitResult {
	result := &CommitResult{
		CreatedRecordIDs: make(map[model.ObjectType]string),
	}
	for obj, id := range existing {
		result.CreatedRecordIDs[obj] = id
	}

	// Post-qualification path: the opportunity already exists, so only its
	// MEDDIC attributes are updated. Account/Contact are never re-created.
	if oppID := result.CreatedRecordIDs[model.ObjectOpportunity]; oppID != "" {
		w.updateMEDDIC(ctx, oppID, rec.MEDDIC, result)
		w.finish(result)
		return result
	}

	accountID := w.writeAccount(ctx, rec, result)
	if accountID == "" {
		// Dependency failed: dependents are reported, never attempted.
		w.skip(result, model.ObjectContact)
		w.skip(result, model.ObjectOpportunity)
		w.finish(result)
		return result
	}

	contactID := w.writeContact(ctx, rec, accountID, result)
	w.writeOpportunity(ctx, rec, accountID, contactID, result)

	w.finish(result)
	return result
}

func (w *Writer) writeAccount(ctx context.Context, rec *model.SalesCallRecord, result *CommitResult) string {
	if id := result.CreatedRecordIDs[model.ObjectAccount]; id != "" {
		return id
	}

	id, err := w.client.CreateAccount(ctx, rec.Account)
	if err != nil {
		w.fail(result, model.ObjectAccount, err)
		return ""
	}
	result.CreatedRecordIDs[model.ObjectAccount] = id
	return id
}

func (w *Writer) writeContact(ctx context.Context, rec *model.SalesCallRecord, accountID string, result *CommitResult) string {
	if id := result.CreatedRecordIDs[model.ObjectContact]; id != "" {
		return id
	}
	if strings.TrimSpace(rec.Contact.Name) == "" {
		// Nothing to create; the opportunity proceeds without a contact.
		return ""
	}

	id, err := w.client.CreateContact(ctx, rec.Contact, accountID)
	if err != nil {
		w.fail(result, model.ObjectContact, err)
		return ""
	}
	result.CreatedRecordIDs[model.ObjectContact] = id
	return id
}

func (w *Writer) writeOpportunity(ctx context.Context, rec *model.SalesCallRecord, accountID, contactID string, result *CommitResult) {
	if result.CreatedRecordIDs[model.ObjectOpportunity] != "" {
		return
	}

	opp := rec.Opportunity
	if strings.TrimSpace(opp.Name) == "" && rec.Account.Name != "" {
		opp.Name = rec.Account.Name + " - New Opportunity"
	}

	id, err := w.client.CreateOpportunity(ctx, opp, accountID, contactID, rec.MEDDIC)
	if err != nil && IsFieldNotFound(err) {
		// Schema drift: the org lacks the MEDDIC attribute slots. Drop them
		// and retry; a missing custom field must never abort the commit.
		w.logger.Warn("opportunity MEDDIC fields missing in CRM schema, retrying without them",
			zap.String("account_id", accountID))
		id, err = w.client.CreateOpportunity(ctx, opp, accountID, contactID, nil)
	}
	if err != nil {
		w.fail(result, model.ObjectOpportunity, err)
		return
	}
	result.CreatedRecordIDs[model.ObjectOpportunity] = id
}

func (w *Writer) updateMEDDIC(ctx context.Context, oppID string, notes map[string]string, result *CommitResult) {
	err := w.client.UpdateOpportunityMEDDIC(ctx, oppID, notes)
	if err != nil && IsFieldNotFound(err) {
		w.logger.Warn("opportunity MEDDIC fields missing in CRM schema, update dropped",
			zap.String("opportunity_id", oppID))
		return
	}
	if err != nil {
		w.fail(result, model.ObjectOpportunity, err)
	}
}

func (w *Writer) fail(result *CommitResult, object model.ObjectType, err error) {
	w.logger.Error("crm write failed",
		zap.String("object", string(object)),
		zap.Error(err))
	result.Errors = append(result.Errors, model.RecordError{
		Object:     object,
		Code:       string(CodeOf(err)),
		Message:    err.Error(),
		OccurredAt: w.now(),
	})
}

func (w *Writer) skip(result *CommitResult, object model.ObjectType) {
	result.Errors = append(result.Errors, model.RecordError{
		Object:     object,
		Code:       string(CodeSkippedDependency),
		Message:    "not attempted: required account record was not created",
		OccurredAt: w.now(),
	})
}

func (w *Writer) finish(result *CommitResult) {
	status := "ok"
	if !result.OK() {
		status = "partial_failure"
	}
	metrics.CommitsTotal.WithLabelValues(status).Inc()
}
