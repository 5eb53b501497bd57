package audit

import (
	"context"
	"sync"

	"github.com/sells-group/contact-sync/internal/model"
)

// memorySink records appended records in order.
type memorySink struct {
	mu      sync.Mutex
	records []model.AuditRecord
	err     error
}

func (m *memorySink) Append(_ context.Context, rec model.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

// fakeSheets implements sheets.Client.
type fakeSheets struct {
	rows [][]any
	err  error
}

func (f *fakeSheets) AppendRow(_ context.Context, row []any) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeSheets) ReadRows(context.Context) ([][]string, error) {
	return nil, f.err
}

// stallingSink blocks until the append context ends.
type stallingSink struct{}

func (stallingSink) Append(ctx context.Context, _ model.AuditRecord) error {
	<-ctx.Done()
	return ctx.Err()
}
