package crm

import (
	"context"
	"errors"

	"github.com/sells-group/contact-sync/internal/model"
	"github.com/sells-group/contact-sync/internal/resilience"
	"github.com/sells-group/contact-sync/pkg/hubspot"
)

// hubspotProperties maps logical fields to HubSpot contact property names.
var hubspotProperties = map[Field]string{
	FieldStreet:      "address",
	FieldCity:        "city",
	FieldState:       "state",
	FieldPostalCode:  "zip",
	FieldPhoneStatus: "phone_status",
	FieldGrade:       "grade",
}

var hubspotReadProperties = []string{
	"firstname", "lastname", "phone",
	"address", "city", "state", "zip",
	"phone_status", "grade",
}

// HubSpot adapts a hubspot.Client to Client.
type HubSpot struct {
	client hubspot.Client
}

// NewHubSpot wraps c.
func NewHubSpot(c hubspot.Client) *HubSpot {
	return &HubSpot{client: c}
}

// GetContact fetches a single contact by id.
func (h *HubSpot) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	obj, err := h.client.GetContact(ctx, id, hubspotReadProperties)
	if err != nil {
		return nil, hubspotError(err)
	}
	c := contactFromHubSpot(*obj)
	return &c, nil
}

// RecentContacts returns up to limit contacts, most recently modified first.
func (h *HubSpot) RecentContacts(ctx context.Context, limit int) ([]model.Contact, error) {
	objs, err := h.client.SearchRecent(ctx, limit, hubspotReadProperties)
	if err != nil {
		return nil, hubspotError(err)
	}
	out := make([]model.Contact, 0, len(objs))
	for _, o := range objs {
		out = append(out, contactFromHubSpot(o))
	}
	return out, nil
}

// UpdateProperties writes fields in a single PATCH.
func (h *HubSpot) UpdateProperties(ctx context.Context, id string, fields map[Field]string) error {
	props := make(map[string]string, len(fields))
	for f, v := range fields {
		name, ok := hubspotProperties[f]
		if !ok {
			return resilience.Validation("hubspot: unknown field %q", f)
		}
		props[name] = v
	}
	if err := h.client.UpdateContact(ctx, id, props); err != nil {
		return hubspotError(err)
	}
	return nil
}

func contactFromHubSpot(o hubspot.Object) model.Contact {
	p := o.Properties
	return model.Contact{
		ID:          o.ID,
		FirstName:   p["firstname"],
		LastName:    p["lastname"],
		Phone:       p["phone"],
		Street:      p["address"],
		City:        p["city"],
		State:       p["state"],
		PostalCode:  p["zip"],
		PhoneStatus: p["phone_status"],
		Grade:       p["grade"],
	}
}

func hubspotError(err error) error {
	var apiErr *hubspot.APIError
	if errors.As(err, &apiErr) {
		return resilience.Provider("crm", apiErr.StatusCode, apiErr.Body)
	}
	return resilience.Unexpected("crm", err)
}
