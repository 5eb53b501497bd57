package crm

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/contact-sync/internal/model"
	"github.com/sells-group/contact-sync/internal/resilience"
)

// Result is the outcome of a single CRM write.
type Result struct {
	OK  bool
	Err error
}

func failed(err error) Result {
	return Result{Err: err}
}

// Updater applies resolved fields to CRM contacts. Each call makes at most
// one write and never retries.
type Updater struct {
	client Client
}

// NewUpdater builds an Updater. A nil client yields an updater whose writes
// fail with a configuration error.
func NewUpdater(client Client) *Updater {
	return &Updater{client: client}
}

// Configured reports whether a CRM backend is available.
func (u *Updater) Configured() bool {
	return u != nil && u.client != nil
}

// UpdateAddress writes all four address fields. Incomplete addresses are
// rejected before any call so a partial address is never written.
func (u *Updater) UpdateAddress(ctx context.Context, id string, addr model.AddressResult) Result {
	if strings.TrimSpace(id) == "" {
		return failed(resilience.Validation("contact id is required"))
	}
	if !addr.Complete() {
		return failed(resilience.Validation("address for contact %s is incomplete", id))
	}
	return u.write(ctx, id, addressFields(addr))
}

// UpdateStatus writes the phone status sentinel.
func (u *Updater) UpdateStatus(ctx context.Context, id, status string) Result {
	if strings.TrimSpace(id) == "" {
		return failed(resilience.Validation("contact id is required"))
	}
	if strings.TrimSpace(status) == "" {
		return failed(resilience.Validation("status is required"))
	}
	return u.write(ctx, id, map[Field]string{FieldPhoneStatus: status})
}

// UpdateGrade writes the grade received from the partner.
func (u *Updater) UpdateGrade(ctx context.Context, id, grade string) Result {
	if strings.TrimSpace(id) == "" {
		return failed(resilience.Validation("contact id is required"))
	}
	if strings.TrimSpace(grade) == "" {
		return failed(resilience.Validation("grade is required"))
	}
	return u.write(ctx, id, map[Field]string{FieldGrade: grade})
}

func (u *Updater) write(ctx context.Context, id string, fields map[Field]string) Result {
	if !u.Configured() {
		return failed(resilience.Configuration("crm"))
	}
	if err := u.client.UpdateProperties(ctx, id, fields); err != nil {
		err = resilience.Unexpected("crm", err)
		zap.L().Debug("crm: update failed",
			zap.String("contact_id", id),
			zap.String("kind", string(resilience.KindOf(err))),
			zap.Bool("transient", resilience.IsTransient(err)),
		)
		return failed(err)
	}
	return Result{OK: true}
}

// Ensure adapters satisfy Client.
var (
	_ Client = (*HubSpot)(nil)
	_ Client = (*Salesforce)(nil)
)

