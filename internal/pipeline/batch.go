package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-sync/internal/ledger"
	"github.com/sells-group/contact-sync/internal/model"
	"github.com/sells-group/contact-sync/internal/resilience"
)

const ledgerSaveTimeout = 30 * time.Second

// BatchSummary counts what a batch run did with each fetched contact.
type BatchSummary struct {
	Fetched    int           `json:"fetched"`
	Skipped    int           `json:"skipped"`
	Enriched   int           `json:"enriched"`
	Delivered  int           `json:"delivered"`
	Incomplete int           `json:"incomplete"`
	Failed     int           `json:"failed"`
	LedgerSize int           `json:"ledger_size"`
	Duration   time.Duration `json:"duration"`
	// LedgerSaveError is set when the final ledger save failed.
	LedgerSaveError string `json:"ledger_save_error,omitempty"`
}

func (s BatchSummary) String() string {
	return fmt.Sprintf("fetched=%d skipped=%d enriched=%d delivered=%d incomplete=%d failed=%d ledger=%d",
		s.Fetched, s.Skipped, s.Enriched, s.Delivered, s.Incomplete, s.Failed, s.LedgerSize)
}

// RunBatch processes up to limit recently modified contacts that are not in
// the ledger. Contacts are handled one at a time and a failure on one never
// stops the rest. The ledger is saved once at the end, including when ctx is
// cancelled part way through.
func (p *Pipeline) RunBatch(ctx context.Context, limit int) (summary *BatchSummary, err error) {
	if p.ledger == nil {
		return nil, resilience.Configuration("ledger")
	}
	if p.crm == nil {
		return nil, resilience.Configuration("crm")
	}
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	log := zap.L().With(zap.Int("limit", limit))
	start := p.now()

	if locker, ok := p.ledger.(ledger.Locker); ok {
		unlock, lockErr := locker.Lock(ctx)
		if lockErr != nil {
			return nil, eris.Wrap(lockErr, "batch: acquire ledger lock")
		}
		defer unlock()
	}

	processed, err := p.ledger.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "batch: load ledger")
	}
	initial := processed.Len()

	contacts, err := p.crm.RecentContacts(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(resilience.Unexpected("crm", err), "batch: fetch contacts")
	}

	summary = &BatchSummary{Fetched: len(contacts)}
	log.Info("batch: starting",
		zap.Int("fetched", len(contacts)),
		zap.Int("ledger_size", initial),
	)

	defer func() {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerSaveTimeout)
		defer cancel()
		if saveErr := p.ledger.Save(saveCtx, processed); saveErr != nil {
			log.Error("batch: ledger save failed", zap.Error(saveErr))
			p.audit.Log(saveCtx, model.AuditRecord{
				Step:    StepLedgerSave,
				Status:  model.AuditError,
				Message: saveErr.Error(),
			})
			summary.LedgerSaveError = saveErr.Error()
			err = errors.Join(err, eris.Wrap(saveErr, "batch: save ledger"))
		}
		summary.LedgerSize = processed.Len()
		summary.Duration = p.now().Sub(start)
		p.audit.Step(saveCtx, StepBatch, start, batchStatus(summary, err), summary.String())
		log.Info("batch: complete",
			zap.Int("delivered", summary.Delivered),
			zap.Int("enriched", summary.Enriched),
			zap.Int("incomplete", summary.Incomplete),
			zap.Int("failed", summary.Failed),
			zap.Int("ledger_added", summary.LedgerSize-initial),
			zap.Duration("duration", summary.Duration),
		)
	}()

	for i := range contacts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Warn("batch: cancelled", zap.Int("remaining", len(contacts)-i))
			return summary, fmt.Errorf("batch: cancelled: %w", ctxErr)
		}

		c := contacts[i]
		if c.ID == "" || processed.Has(c.ID) {
			summary.Skipped++
			continue
		}

		if p.handleContact(ctx, &c, summary) {
			processed.Add(c.ID)
		}
	}

	return summary, nil
}

// handleContact enriches c when needed and delivers it. It reports whether
// the contact was delivered.
func (p *Pipeline) handleContact(ctx context.Context, c *model.Contact, summary *BatchSummary) (delivered bool) {
	log := zap.L().With(zap.String("contact_id", c.ID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("batch: recovered panic", zap.Any("panic", r))
			p.audit.WithContact(c.ID).Log(ctx, model.AuditRecord{
				Step:    StepBatch,
				Status:  model.AuditError,
				Message: fmt.Sprintf("panic: %v", r),
			})
			summary.Failed++
			delivered = false
		}
	}()

	if !c.AddressComplete() {
		if strings.TrimSpace(c.Phone) == "" {
			p.audit.WithContact(c.ID).Step(ctx, StepPhoneValidation, p.now(), model.AuditSkipped, "No phone number on contact")
			summary.Incomplete++
			return false
		}

		var opts []ProcessOption
		if name := c.FullName(); name != "" {
			opts = append(opts, WithNameHint(name))
		}
		res := p.ProcessContact(ctx, c.ID, c.Phone, opts...)
		if res.Status == StatusSuccess && res.Address != nil {
			summary.Enriched++
			c.ApplyAddress(*res.Address)
		}
		if !c.AddressComplete() {
			summary.Incomplete++
			log.Debug("batch: contact still incomplete", zap.String("status", string(res.Status)))
			return false
		}
	}

	if err := p.deliver(ctx, *c); err != nil {
		summary.Failed++
		return false
	}
	summary.Delivered++
	return true
}

func batchStatus(s *BatchSummary, err error) model.AuditStatus {
	switch {
	case err != nil:
		return model.AuditError
	case s.Failed > 0:
		return model.AuditFailed
	default:
		return model.AuditSuccess
	}
}
