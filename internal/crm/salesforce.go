package crm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sells-group/contact-sync/internal/model"
	"github.com/sells-group/contact-sync/internal/resilience"
	"github.com/sells-group/contact-sync/pkg/salesforce"
)

// salesforceFields maps logical fields to Contact field API names.
var salesforceFields = map[Field]string{
	FieldStreet:      "MailingStreet",
	FieldCity:        "MailingCity",
	FieldState:       "MailingState",
	FieldPostalCode:  "MailingPostalCode",
	FieldPhoneStatus: "Phone_Status__c",
	FieldGrade:       "Grade__c",
}

// Salesforce adapts a salesforce.Client to Client.
//
// go-salesforce does not expose response status codes, so API failures are
// reported as unexpected errors carrying the response text.
type Salesforce struct {
	client salesforce.Client
}

// NewSalesforce wraps c.
func NewSalesforce(c salesforce.Client) *Salesforce {
	return &Salesforce{client: c}
}

// GetContact fetches a single contact by id. A missing record is reported as
// a 404 provider error to match the REST backends.
func (s *Salesforce) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	sc, err := salesforce.FindContactByID(ctx, s.client, id)
	if err != nil {
		return nil, resilience.Unexpected("crm", err)
	}
	if sc == nil {
		return nil, resilience.Provider("crm", http.StatusNotFound, fmt.Sprintf("contact %s not found", id))
	}
	c := contactFromSalesforce(*sc)
	return &c, nil
}

// RecentContacts returns up to limit contacts, most recently modified first.
func (s *Salesforce) RecentContacts(ctx context.Context, limit int) ([]model.Contact, error) {
	rows, err := salesforce.RecentContacts(ctx, s.client, limit)
	if err != nil {
		return nil, resilience.Unexpected("crm", err)
	}
	out := make([]model.Contact, 0, len(rows))
	for _, r := range rows {
		out = append(out, contactFromSalesforce(r))
	}
	return out, nil
}

// UpdateProperties writes fields in a single PATCH.
func (s *Salesforce) UpdateProperties(ctx context.Context, id string, fields map[Field]string) error {
	record := make(map[string]any, len(fields))
	for f, v := range fields {
		name, ok := salesforceFields[f]
		if !ok {
			return resilience.Validation("salesforce: unknown field %q", f)
		}
		record[name] = v
	}
	if err := salesforce.UpdateContact(ctx, s.client, id, record); err != nil {
		return resilience.Unexpected("crm", err)
	}
	return nil
}

func contactFromSalesforce(sc salesforce.Contact) model.Contact {
	return model.Contact{
		ID:          sc.ID,
		FirstName:   sc.FirstName,
		LastName:    sc.LastName,
		Phone:       sc.Phone,
		Street:      sc.MailingStreet,
		City:        sc.MailingCity,
		State:       sc.MailingState,
		PostalCode:  sc.MailingPostalCode,
		PhoneStatus: sc.PhoneStatus,
		Grade:       sc.Grade,
	}
}
