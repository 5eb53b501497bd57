// Package pipeline orchestrates contact enrichment: phone validation,
// reverse lookup, CRM update, partner delivery and the audit trail.
package pipeline

import (
	"context"
	"time"

	"github.com/sells-group/contact-sync/internal/audit"
	"github.com/sells-group/contact-sync/internal/crm"
	"github.com/sells-group/contact-sync/internal/enrich"
	"github.com/sells-group/contact-sync/internal/ledger"
	"github.com/sells-group/contact-sync/pkg/partner"
)

// Audit step names.
const (
	StepPhoneValidation = "Phone Validation"
	StepLookup          = "Trestle Lookup"
	StepCRMUpdate       = "CRM Update"
	StepDelivery        = "Partner Delivery"
	StepGradeUpdate     = "Grade Update"
	StepBatch           = "Batch Summary"
	StepLedgerSave      = "Ledger Save"
)

// DefaultBatchLimit is the number of contacts fetched when no limit is given.
const DefaultBatchLimit = 50

// Deps are the collaborators a Pipeline drives. CRM and Partner may be nil
// when not configured; operations that need them then fail with a
// configuration error.
type Deps struct {
	CRM      crm.Client
	Enricher *enrich.Enricher
	Partner  partner.Client
	Ledger   ledger.Ledger
	Audit    *audit.Logger
}

// Pipeline runs the single-contact and batch flows. It holds no per-contact
// state and is safe for concurrent webhook requests.
type Pipeline struct {
	crm         crm.Client
	updater     *crm.Updater
	enricher    *enrich.Enricher
	partner     partner.Client
	ledger      ledger.Ledger
	audit       *audit.Logger
	callTimeout time.Duration
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCallTimeout bounds each CRM write, partner delivery and audit append.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.callTimeout = d }
}

// New builds a Pipeline.
func New(d Deps, opts ...Option) *Pipeline {
	p := &Pipeline{
		crm:      d.CRM,
		updater:  crm.NewUpdater(d.CRM),
		enricher: d.Enricher,
		partner:  d.Partner,
		ledger:   d.Ledger,
		audit:    d.Audit,
		now:      time.Now,
	}
	if p.audit == nil {
		p.audit = audit.NewLogger(nil, "contact-sync")
	}
	if p.enricher == nil {
		p.enricher = enrich.New(nil)
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.callTimeout > 0 {
		p.audit = p.audit.WithTimeout(p.callTimeout)
	}
	return p
}

// bounded returns ctx limited by the per-call timeout.
func (p *Pipeline) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.callTimeout)
}
