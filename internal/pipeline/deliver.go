package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/contact-sync/internal/model"
	"github.com/sells-group/contact-sync/internal/resilience"
	"github.com/sells-group/contact-sync/pkg/partner"
)

// PayloadFor builds the partner payload for a contact.
func PayloadFor(c model.Contact) partner.Payload {
	return partner.Payload{
		UniqueID:  c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Address:   c.Street,
		City:      c.City,
		State:     c.State,
		Zip:       c.PostalCode,
	}
}

// deliver posts a complete contact to the partner and audits the attempt.
func (p *Pipeline) deliver(ctx context.Context, c model.Contact) error {
	auditLog := p.audit.WithContact(c.ID)
	start := p.now()

	if p.partner == nil {
		err := resilience.Configuration("partner")
		auditLog.Step(ctx, StepDelivery, start, model.AuditError, err.Error())
		return err
	}
	if !c.AddressComplete() {
		err := resilience.Validation("contact %s has an incomplete address", c.ID)
		auditLog.Step(ctx, StepDelivery, start, model.AuditSkipped, err.Error())
		return err
	}

	callCtx, cancel := p.bounded(ctx)
	err := p.partner.Deliver(callCtx, PayloadFor(c))
	cancel()
	if err != nil {
		var apiErr *partner.APIError
		if errors.As(err, &apiErr) {
			err = resilience.Provider("partner", apiErr.StatusCode, apiErr.Body)
		} else {
			err = resilience.Unexpected("partner", err)
		}
		auditLog.Step(ctx, StepDelivery, start, model.AuditFailed, "Delivery failed: "+resilience.Detail(err))
		zap.L().Warn("pipeline: partner delivery failed",
			zap.String("contact_id", c.ID),
			zap.Int("status", resilience.StatusCode(err)),
			zap.Bool("transient", resilience.IsTransient(err)),
			zap.Error(err),
		)
		return err
	}

	auditLog.Step(ctx, StepDelivery, start, model.AuditSuccess, fmt.Sprintf("Delivered contact %s", c.ID))
	return nil
}

// SendContact fetches one contact and delivers it when its address is
// complete. Incomplete contacts are reported as skipped. The ledger is not
// consulted or updated.
func (p *Pipeline) SendContact(ctx context.Context, contactID string) (*ContactResult, error) {
	if contactID == "" {
		return nil, resilience.Validation("contact_id is required")
	}
	if p.crm == nil {
		return nil, resilience.Configuration("crm")
	}

	c, err := p.crm.GetContact(ctx, contactID)
	if err != nil {
		return nil, resilience.Unexpected("crm", err)
	}
	if c == nil {
		return nil, resilience.Provider("crm", 404, "contact "+contactID+" not found")
	}
	if !c.AddressComplete() {
		msg := fmt.Sprintf("Contact %s has an incomplete address; not sent", contactID)
		p.audit.WithContact(contactID).Step(ctx, StepDelivery, p.now(), model.AuditSkipped, msg)
		return &ContactResult{ContactID: contactID, Status: StatusSkipped, Message: msg}, nil
	}

	if err := p.deliver(ctx, *c); err != nil {
		return failedResult(contactID, err), nil
	}
	addr := c.Address()
	return &ContactResult{
		ContactID: contactID,
		Status:    StatusSuccess,
		Message:   "Delivered contact " + contactID,
		Address:   &addr,
	}, nil
}
