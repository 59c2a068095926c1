package crm

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dealflow-ai/qualification-platform/internal/model"
	"github.com/dealflow-ai/qualification-platform/pkg/logger"
)

// Preview is a Client used when Salesforce credentials are not configured.
// It logs what would be written and returns synthetic IDs so the rest of
// the pipeline behaves normally.
type Preview struct {
	logger *logger.Logger
	seq    atomic.Int64
}

// NewPreview creates a preview client.
func NewPreview(log *logger.Logger) *Preview {
	return &Preview{logger: log}
}

func (p *Preview) CreateAccount(ctx context.Context, acc model.Account) (string, error) {
	id := p.nextID("ACC")
	p.logger.Info("preview: would create account",
		zap.String("id", id),
		zap.String("name", acc.Name),
		zap.String("industry", acc.Industry))
	return id, nil
}

func (p *Preview) CreateContact(ctx context.Context, c model.Contact, accountID string) (string, error) {
	id := p.nextID("CON")
	p.logger.Info("preview: would create contact",
		zap.String("id", id),
		zap.String("name", c.Name),
		zap.String("account_id", accountID))
	return id, nil
}

func (p *Preview) CreateOpportunity(ctx context.Context, opp model.Opportunity, accountID, contactID string, meddic map[string]string) (string, error) {
	id := p.nextID("OPP")
	p.logger.Info("preview: would create opportunity",
		zap.String("id", id),
		zap.String("name", opp.Name),
		zap.String("account_id", accountID),
		zap.String("contact_id", contactID),
		zap.Int("meddic_fields", len(meddic)))
	return id, nil
}

func (p *Preview) UpdateOpportunityMEDDIC(ctx context.Context, opportunityID string, meddic map[string]string) error {
	p.logger.Info("preview: would update opportunity MEDDIC",
		zap.String("opportunity_id", opportunityID),
		zap.Int("meddic_fields", len(meddic)))
	return nil
}

func (p *Preview) nextID(prefix string) string {
	return fmt.Sprintf("%s-preview-%06d", prefix, p.seq.Add(1))
}
