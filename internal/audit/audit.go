// Package audit records every pipeline step to an append-only sink. Sink
// failures never reach the caller; they are logged and counted.
package audit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/contact-sync/internal/model"
)

// Sink is a durable, append-only destination for audit records.
type Sink interface {
	Append(ctx context.Context, rec model.AuditRecord) error
}

// DefaultTimeout bounds a single append when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Logger stamps and appends audit records.
type Logger struct {
	sink      Sink
	script    string
	contactID string
	timeout   time.Duration
	failures  *atomic.Int64
	now       func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithTimeout bounds each append. Non-positive values keep DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// NewLogger builds a Logger that tags records with script. A nil sink logs
// to zap only.
func NewLogger(sink Sink, script string, opts ...Option) *Logger {
	if sink == nil {
		sink = LogSink{}
	}
	l := &Logger{
		sink:     sink,
		script:   script,
		timeout:  DefaultTimeout,
		failures: new(atomic.Int64),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithTimeout returns a Logger whose appends are bounded by d. It shares
// the sink and failure counter with l.
func (l *Logger) WithTimeout(d time.Duration) *Logger {
	cp := *l
	WithTimeout(d)(&cp)
	return &cp
}

// WithContact returns a Logger that tags records with contactID. It shares
// the sink and failure counter with l.
func (l *Logger) WithContact(contactID string) *Logger {
	cp := *l
	cp.contactID = contactID
	return &cp
}

// Log appends rec after filling its id, timestamp, script and contact.
// It never fails.
func (l *Logger) Log(ctx context.Context, rec model.AuditRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}
	if rec.Script == "" {
		rec.Script = l.script
	}
	if rec.ContactID == "" {
		rec.ContactID = l.contactID
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.sink.Append(ctx, rec); err != nil {
		l.failures.Add(1)
		zap.L().Warn("audit: append failed",
			zap.String("step", rec.Step),
			zap.String("status", string(rec.Status)),
			zap.String("contact_id", rec.ContactID),
			zap.Error(err),
		)
	}
}

// Step records a timed step that started at start.
func (l *Logger) Step(ctx context.Context, step string, start time.Time, status model.AuditStatus, msg string) {
	d := l.now().Sub(start).Seconds()
	l.Log(ctx, model.AuditRecord{
		Step:     step,
		Status:   status,
		Message:  msg,
		Duration: &d,
	})
}

// SafeExecute runs fn as a named step. A nil error is audited as Success
// with fn's message; an error or panic is audited as Error with its text and
// returned.
func (l *Logger) SafeExecute(ctx context.Context, step string, fn func(ctx context.Context) (string, error)) (err error) {
	start := l.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", step, r)
			l.Step(ctx, step, start, model.AuditError, err.Error())
		}
	}()

	msg, err := fn(ctx)
	if err != nil {
		l.Step(ctx, step, start, model.AuditError, err.Error())
		return err
	}
	l.Step(ctx, step, start, model.AuditSuccess, msg)
	return nil
}

// Failures returns how many appends have failed.
func (l *Logger) Failures() int64 {
	return l.failures.Load()
}
