package audit

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/contact-sync/internal/model"
	"github.com/sells-group/contact-sync/internal/store"
	"github.com/sells-group/contact-sync/pkg/notion"
	"github.com/sells-group/contact-sync/pkg/sheets"
)

// TimestampLayout is the timestamp format written to spreadsheet rows.
const TimestampLayout = "2006-01-02 15:04:05"

// SheetsSink appends one spreadsheet row per record:
// timestamp, script, step, status, message, duration.
type SheetsSink struct {
	Client sheets.Client
}

func (s SheetsSink) Append(ctx context.Context, rec model.AuditRecord) error {
	return s.Client.AppendRow(ctx, Row(rec))
}

// Row renders rec as a spreadsheet row.
func Row(rec model.AuditRecord) []any {
	return []any{
		rec.Timestamp.Format(TimestampLayout),
		rec.Script,
		rec.Step,
		string(rec.Status),
		rec.Message,
		rec.DurationString(),
	}
}

// NotionSink creates one page per record in a Notion database.
type NotionSink struct {
	Client     notion.Client
	DatabaseID string
}

func (s NotionSink) Append(ctx context.Context, rec model.AuditRecord) error {
	return notion.AppendAuditRow(ctx, s.Client, s.DatabaseID, notion.AuditRow{
		Timestamp: rec.Timestamp,
		Script:    rec.Script,
		Step:      rec.Step,
		Status:    string(rec.Status),
		Message:   rec.Message,
		Duration:  rec.Duration,
		ContactID: rec.ContactID,
	})
}

// StoreSink writes records to the SQL store's audit_log table.
type StoreSink struct {
	Store store.Store
}

func (s StoreSink) Append(ctx context.Context, rec model.AuditRecord) error {
	return s.Store.AppendAudit(ctx, rec)
}

// LogSink writes records to the global zap logger. It never fails.
type LogSink struct{}

func (LogSink) Append(_ context.Context, rec model.AuditRecord) error {
	fields := []zap.Field{
		zap.String("audit_id", rec.ID),
		zap.String("script", rec.Script),
		zap.String("step", rec.Step),
		zap.String("status", string(rec.Status)),
		zap.String("message", rec.Message),
	}
	if rec.Duration != nil {
		fields = append(fields, zap.Float64("duration_s", *rec.Duration))
	}
	if rec.ContactID != "" {
		fields = append(fields, zap.String("contact_id", rec.ContactID))
	}
	zap.L().Info("audit", fields...)
	return nil
}

// Multi fans a record out to every sink. Every sink is attempted; the
// returned error joins the individual failures.
type Multi []Sink

func (m Multi) Append(ctx context.Context, rec model.AuditRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
