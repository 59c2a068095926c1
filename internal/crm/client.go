// Package crm writes qualified sales records to the external CRM in
// dependency order with partial-failure tolerance.
package crm

import (
	"context"

	"github.com/dealflow-ai/qualification-platform/internal/model"
)

// Client is the interface to the external CRM's write operations. Each call
// returns a record identifier on success or a structured *Error on failure.
type Client interface {
	// CreateAccount creates an Account record.
	CreateAccount(ctx context.Context, acc model.Account) (string, error)

	// CreateContact creates a Contact record linked to an Account.
	CreateContact(ctx context.Context, c model.Contact, accountID string) (string, error)

	// CreateOpportunity creates an Opportunity record linked to an Account
	// and, when available, a Contact. meddic carries the six qualification
	// notes keyed by canonical field name.
	CreateOpportunity(ctx context.Context, opp model.Opportunity, accountID, contactID string, meddic map[string]string) (string, error)

	// UpdateOpportunityMEDDIC updates only the MEDDIC attributes of an
	// existing Opportunity.
	UpdateOpportunityMEDDIC(ctx context.Context, opportunityID string, meddic map[string]string) error
}
