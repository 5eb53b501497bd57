// Package crm reads contacts from and writes enrichment results back to the
// configured CRM backend.
package crm

import (
	"context"

	"github.com/sells-group/contact-sync/internal/model"
)

// Field is a logical contact property. Backends map it to their own names.
type Field string

// Writable contact fields.
const (
	FieldStreet      Field = "street"
	FieldCity        Field = "city"
	FieldState       Field = "state"
	FieldPostalCode  Field = "postal_code"
	FieldPhoneStatus Field = "phone_status"
	FieldGrade       Field = "grade"
)

// Client is a CRM backend. Implementations return *resilience.Error values
// classified as provider or unexpected failures.
type Client interface {
	GetContact(ctx context.Context, id string) (*model.Contact, error)
	RecentContacts(ctx context.Context, limit int) ([]model.Contact, error)
	UpdateProperties(ctx context.Context, id string, fields map[Field]string) error
}

// addressFields maps a resolved address onto writable fields.
func addressFields(a model.AddressResult) map[Field]string {
	return map[Field]string{
		FieldStreet:     a.Street,
		FieldCity:       a.City,
		FieldState:      a.State,
		FieldPostalCode: a.PostalCode,
	}
}
