package crm

import (
	"context"
	"sync"

	"github.com/sells-group/contact-sync/internal/model"
)

// fakeClient is an in-memory CRM that records every write.
type fakeClient struct {
	mu       sync.Mutex
	contacts map[string]model.Contact
	writes   []map[Field]string
	err      error
}

func newFakeClient(contacts ...model.Contact) *fakeClient {
	f := &fakeClient{contacts: make(map[string]model.Contact)}
	for _, c := range contacts {
		f.contacts[c.ID] = c
	}
	return f
}

func (f *fakeClient) GetContact(_ context.Context, id string) (*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeClient) RecentContacts(_ context.Context, limit int) ([]model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Contact
	for _, c := range f.contacts {
		if len(out) == limit {
			break
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeClient) UpdateProperties(_ context.Context, id string, fields map[Field]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, fields)
	if f.err != nil {
		return f.err
	}
	c := f.contacts[id]
	c.ID = id
	for k, v := range fields {
		switch k {
		case FieldStreet:
			c.Street = v
		case FieldCity:
			c.City = v
		case FieldState:
			c.State = v
		case FieldPostalCode:
			c.PostalCode = v
		case FieldPhoneStatus:
			c.PhoneStatus = v
		case FieldGrade:
			c.Grade = v
		}
	}
	f.contacts[id] = c
	return nil
}
