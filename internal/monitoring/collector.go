package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-sync/internal/model"
	"github.com/sells-group/contact-sync/internal/pipeline"
	"github.com/sells-group/contact-sync/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Attempts counts lookups and deliveries that were actually tried.
	Attempts int `json:"attempts"`
	// Failures counts attempts that ended in an error. A lookup with no
	// owners is not a failure.
	Failures int     `json:"failures"`
	FailRate float64 `json:"fail_rate"`

	LookupErrors     int `json:"lookup_errors"`
	CRMWriteFailures int `json:"crm_write_failures"`
	DeliveryFailures int `json:"delivery_failures"`
	Delivered        int `json:"delivered"`

	LedgerSaveFailures int   `json:"ledger_save_failures"`
	AuditSinkFailures  int64 `json:"audit_sink_failures"`

	LookbackHours int       `json:"lookback_hours,omitempty"`
	CollectedAt   time.Time `json:"collected_at"`
}

func (s *MetricsSnapshot) computeRate() {
	if s.Attempts > 0 {
		s.FailRate = float64(s.Failures) / float64(s.Attempts)
	}
}

// AuditLister reads audit records back. store.Store satisfies it.
type AuditLister interface {
	ListAudit(ctx context.Context, filter store.AuditFilter) ([]model.AuditRecord, error)
}

// maxScan bounds how many audit records a single collection reads.
const maxScan = 10000

// Collector derives metrics from the audit trail.
type Collector struct {
	audit     AuditLister
	scanLimit int
	now       func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(audit AuditLister) *Collector {
	return &Collector{audit: audit, scanLimit: maxScan, now: time.Now}
}

// Collect summarises audit records written within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	records, err := c.audit.ListAudit(ctx, store.AuditFilter{
		Since:  cutoff,
		Latest: true,
		Limit:  c.scanLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list audit")
	}

	for _, r := range records {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		tally(snap, r)
	}
	snap.computeRate()
	return snap, nil
}

func tally(snap *MetricsSnapshot, r model.AuditRecord) {
	failed := r.Status == model.AuditFailed || r.Status == model.AuditError

	switch r.Step {
	case pipeline.StepLookup:
		snap.Attempts++
		// Failed is a lookup that found no owners.
		if r.Status == model.AuditError {
			snap.Failures++
			snap.LookupErrors++
		}
	case pipeline.StepCRMUpdate:
		if failed {
			snap.Failures++
			snap.CRMWriteFailures++
		}
	case pipeline.StepDelivery:
		switch {
		case r.Status == model.AuditSuccess:
			snap.Attempts++
			snap.Delivered++
		case failed:
			snap.Attempts++
			snap.Failures++
			snap.DeliveryFailures++
		}
	case pipeline.StepLedgerSave:
		if failed {
			snap.LedgerSaveFailures++
		}
	}
}

// FromBatch builds a snapshot for a single batch run. auditFailures is the
// number of audit records the sinks dropped during the run.
func FromBatch(s *pipeline.BatchSummary, auditFailures int64) *MetricsSnapshot {
	snap := &MetricsSnapshot{
		AuditSinkFailures: auditFailures,
		CollectedAt:       time.Now().UTC(),
	}
	if s == nil {
		return snap
	}
	snap.Attempts = s.Delivered + s.Failed
	snap.Failures = s.Failed
	snap.Delivered = s.Delivered
	snap.DeliveryFailures = s.Failed
	if s.LedgerSaveError != "" {
		snap.LedgerSaveFailures = 1
	}
	snap.computeRate()
	return snap
}
