package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/contact-sync/internal/crm"
	"github.com/sells-group/contact-sync/internal/enrich"
	"github.com/sells-group/contact-sync/internal/model"
	"github.com/sells-group/contact-sync/internal/phone"
	"github.com/sells-group/contact-sync/internal/resilience"
)

// Status is the terminal state of a single-contact run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// ContactResult is the outcome of one contact run. Err is set only when
// Status is StatusFailed.
type ContactResult struct {
	ContactID string
	Status    Status
	Message   string
	Address   *model.AddressResult
	Err       error
}

// Skipped reports a handled contact that was not enriched.
func (r *ContactResult) Skipped() bool { return r.Status == StatusSkipped }

// OK reports success or a handled skip.
func (r *ContactResult) OK() bool { return r.Status != StatusFailed }

func failedResult(id string, err error) *ContactResult {
	return &ContactResult{ContactID: id, Status: StatusFailed, Message: err.Error(), Err: err}
}

type processOptions struct {
	nameHint string
}

// ProcessOption tunes a single-contact run.
type ProcessOption func(*processOptions)

// WithNameHint passes the contact's name to the lookup provider.
func WithNameHint(name string) ProcessOption {
	return func(o *processOptions) { o.nameHint = name }
}

// ProcessContact validates the phone, looks up an address and writes it to
// the CRM. Each step emits exactly one audit record. Nothing is retried and
// panics are returned as unexpected failures.
func (p *Pipeline) ProcessContact(ctx context.Context, contactID, rawPhone string, opts ...ProcessOption) (res *ContactResult) {
	var o processOptions
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(contactID) == "" {
		return failedResult(contactID, resilience.Validation("contact_id is required"))
	}
	if strings.TrimSpace(rawPhone) == "" {
		return failedResult(contactID, resilience.Validation("phone_number is required"))
	}

	log := zap.L().With(zap.String("contact_id", contactID))
	auditLog := p.audit.WithContact(contactID)

	step := StepPhoneValidation
	start := p.now()
	defer func() {
		if r := recover(); r != nil {
			err := resilience.Unexpected("pipeline", fmt.Errorf("panic in %s: %v", step, r))
			log.Error("pipeline: recovered panic", zap.String("step", step), zap.Any("panic", r))
			auditLog.Step(ctx, step, start, model.AuditError, resilience.Detail(err))
			res = failedResult(contactID, err)
		}
	}()

	// Validating
	verdict := phone.Validate(rawPhone)
	if !verdict.Valid {
		msg := fmt.Sprintf("Invalid phone number %q: %s", rawPhone, verdict.Reason)
		if r := p.writeStatus(ctx, contactID, model.PhoneStatusInvalid); !r.OK {
			msg += "; status update failed: " + resilience.Detail(r.Err)
			log.Warn("pipeline: invalid-number status write failed", zap.Error(r.Err))
		}
		auditLog.Step(ctx, step, start, model.AuditSkipped, msg)
		log.Info("pipeline: phone rejected", zap.String("reason", verdict.Reason))
		return &ContactResult{ContactID: contactID, Status: StatusSkipped, Message: msg}
	}
	auditLog.Step(ctx, step, start, model.AuditSuccess, "Valid phone number "+verdict.Number)

	// Enriching
	step, start = StepLookup, p.now()
	out := p.enricher.Lookup(ctx, verdict.Number, enrich.Options{NameHint: o.nameHint})
	switch out.Kind {
	case enrich.KindNoMatch:
		msg := fmt.Sprintf("No address found for %s: %s", verdict.Number, out.Reason)
		if r := p.writeStatus(ctx, contactID, model.PhoneStatusNoAddress); !r.OK {
			msg += "; status update failed: " + resilience.Detail(r.Err)
			log.Warn("pipeline: no-address status write failed", zap.Error(r.Err))
		}
		auditLog.Step(ctx, step, start, model.AuditFailed, msg)
		return failedResult(contactID, resilience.NoMatch("trestle", "%s", msg))
	case enrich.KindError:
		msg := "Lookup failed: " + resilience.Detail(out.Err)
		auditLog.Step(ctx, step, start, model.AuditError, msg)
		log.Warn("pipeline: lookup failed",
			zap.String("kind", string(resilience.KindOf(out.Err))),
			zap.Bool("transient", resilience.IsTransient(out.Err)),
			zap.Error(out.Err),
		)
		return failedResult(contactID, out.Err)
	}
	addr := out.Address
	auditLog.Step(ctx, step, start, model.AuditSuccess, "Address found: "+formatAddress(addr))

	// Updating
	step, start = StepCRMUpdate, p.now()
	r := p.writeAddress(ctx, contactID, addr)
	if !r.OK {
		auditLog.Step(ctx, step, start, model.AuditFailed, "CRM update failed: "+resilience.Detail(r.Err))
		log.Warn("pipeline: crm update failed",
			zap.String("kind", string(resilience.KindOf(r.Err))),
			zap.Bool("transient", resilience.IsTransient(r.Err)),
			zap.Error(r.Err),
		)
		return failedResult(contactID, r.Err)
	}
	msg := fmt.Sprintf("Updated contact %s with %s", contactID, formatAddress(addr))
	auditLog.Step(ctx, step, start, model.AuditSuccess, msg)
	log.Info("pipeline: contact enriched")
	return &ContactResult{ContactID: contactID, Status: StatusSuccess, Message: msg, Address: &addr}
}

func (p *Pipeline) writeStatus(ctx context.Context, id, status string) crm.Result {
	ctx, cancel := p.bounded(ctx)
	defer cancel()
	return p.updater.UpdateStatus(ctx, id, status)
}

func (p *Pipeline) writeAddress(ctx context.Context, id string, addr model.AddressResult) crm.Result {
	ctx, cancel := p.bounded(ctx)
	defer cancel()
	return p.updater.UpdateAddress(ctx, id, addr)
}

func formatAddress(a model.AddressResult) string {
	return fmt.Sprintf("%s, %s, %s %s", a.Street, a.City, a.State, a.PostalCode)
}
