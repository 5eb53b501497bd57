package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sells-group/contact-sync/internal/audit"
	"github.com/sells-group/contact-sync/internal/crm"
	"github.com/sells-group/contact-sync/internal/enrich"
	"github.com/sells-group/contact-sync/internal/ledger"
	"github.com/sells-group/contact-sync/internal/model"
	"github.com/sells-group/contact-sync/pkg/partner"
	"github.com/sells-group/contact-sync/pkg/trestle"
)

// fakeCRM is an in-memory CRM. RecentContacts returns contacts in insertion
// order, standing in for most-recently-modified first.
type fakeCRM struct {
	mu       sync.Mutex
	order    []string
	contacts map[string]model.Contact
	writes   []crmWrite
	writeErr error
}

type crmWrite struct {
	ID     string
	Fields map[crm.Field]string
}

func newFakeCRM(contacts ...model.Contact) *fakeCRM {
	f := &fakeCRM{contacts: make(map[string]model.Contact)}
	for _, c := range contacts {
		f.order = append(f.order, c.ID)
		f.contacts[c.ID] = c
	}
	return f
}

func (f *fakeCRM) GetContact(_ context.Context, id string) (*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	if !ok {
		return nil, fmt.Errorf("contact %s not found", id)
	}
	return &c, nil
}

func (f *fakeCRM) RecentContacts(_ context.Context, limit int) ([]model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Contact
	for _, id := range f.order {
		if len(out) == limit {
			break
		}
		out = append(out, f.contacts[id])
	}
	return out, nil
}

func (f *fakeCRM) UpdateProperties(_ context.Context, id string, fields map[crm.Field]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, crmWrite{ID: id, Fields: fields})
	if f.writeErr != nil {
		return f.writeErr
	}
	c := f.contacts[id]
	for k, v := range fields {
		switch k {
		case crm.FieldStreet:
			c.Street = v
		case crm.FieldCity:
			c.City = v
		case crm.FieldState:
			c.State = v
		case crm.FieldPostalCode:
			c.PostalCode = v
		case crm.FieldPhoneStatus:
			c.PhoneStatus = v
		case crm.FieldGrade:
			c.Grade = v
		}
	}
	f.contacts[id] = c
	return nil
}

func (f *fakeCRM) Writes() []crmWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]crmWrite(nil), f.writes...)
}

// fakeTrestle resolves phones from a fixed table. Unknown phones return no owners.
type fakeTrestle struct {
	mu        sync.Mutex
	addresses map[string]trestle.Address
	err       error
	panicMsg  string
	calls     []string
	hints     int
}

func (f *fakeTrestle) ReversePhone(_ context.Context, phone string, opts ...trestle.LookupOption) (*trestle.PhoneResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, phone)
	f.hints += len(opts)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	addr, ok := f.addresses[phone]
	if !ok {
		return &trestle.PhoneResponse{PhoneNumber: phone}, nil
	}
	return &trestle.PhoneResponse{
		PhoneNumber: phone,
		Owners: []trestle.Owner{{
			Name:             "Owner",
			CurrentAddresses: []trestle.Address{addr},
		}},
	}, nil
}

func (f *fakeTrestle) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakePartner records deliveries and fails for ids in failFor.
type fakePartner struct {
	mu        sync.Mutex
	delivered []partner.Payload
	failFor   map[string]bool
}

func (f *fakePartner) Deliver(_ context.Context, p partner.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[p.UniqueID] {
		return &partner.APIError{StatusCode: 500, Body: "partner down"}
	}
	f.delivered = append(f.delivered, p)
	return nil
}

func (f *fakePartner) IDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.delivered))
	for _, p := range f.delivered {
		ids = append(ids, p.UniqueID)
	}
	sort.Strings(ids)
	return ids
}

// memoryLedger keeps the persisted set in memory.
type memoryLedger struct {
	mu      sync.Mutex
	saved   []string
	saves   int
	loadErr error
	saveErr error
}

func (m *memoryLedger) Load(context.Context) (ledger.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return ledger.NewSet(m.saved...), nil
}

func (m *memoryLedger) Save(ctx context.Context, s ledger.Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.saved = s.Sorted()
	return nil
}

// memorySink implements audit.Sink.
type memorySink struct {
	mu      sync.Mutex
	records []model.AuditRecord
}

func (m *memorySink) Append(_ context.Context, rec model.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySink) ForContact(id string) []model.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AuditRecord
	for _, r := range m.records {
		if r.ContactID == id {
			out = append(out, r)
		}
	}
	return out
}

func (m *memorySink) ForStep(step string) []model.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AuditRecord
	for _, r := range m.records {
		if r.Step == step {
			out = append(out, r)
		}
	}
	return out
}

type harness struct {
	crm     *fakeCRM
	trestle *fakeTrestle
	partner *fakePartner
	ledger  *memoryLedger
	sink    *memorySink
	p       *Pipeline
}

func newHarness(contacts ...model.Contact) *harness {
	h := &harness{
		crm:     newFakeCRM(contacts...),
		trestle: &fakeTrestle{addresses: make(map[string]trestle.Address)},
		partner: &fakePartner{failFor: make(map[string]bool)},
		ledger:  &memoryLedger{},
		sink:    &memorySink{},
	}
	h.p = New(Deps{
		CRM:      h.crm,
		Enricher: enrich.New(h.trestle),
		Partner:  h.partner,
		Ledger:   h.ledger,
		Audit:    audit.NewLogger(h.sink, "contact-sync-test"),
	})
	return h
}

func sdAddress(n int) trestle.Address {
	return trestle.Address{
		StreetLine1: fmt.Sprintf("%d Main St", n),
		City:        "San Diego",
		StateCode:   "CA",
		PostalCode:  "92101",
	}
}
