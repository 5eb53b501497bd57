// Package store persists the processed-contact ledger and audit records in
// SQLite or Postgres.
package store

import (
	"context"
	"time"

	"github.com/sells-group/contact-sync/internal/model"
)

// AuditFilter narrows ListAudit results. Zero values match everything.
type AuditFilter struct {
	Step      string            `json:"step,omitempty"`
	Status    model.AuditStatus `json:"status,omitempty"`
	ContactID string            `json:"contact_id,omitempty"`
	// Since keeps records stamped at or after it.
	Since time.Time `json:"since,omitempty"`
	// Latest returns the most recent records first.
	Latest bool `json:"latest,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	Offset    int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the contact pipeline.
type Store interface {
	// Ledger
	LoadProcessed(ctx context.Context) ([]string, error)
	SaveProcessed(ctx context.Context, ids []string) error

	// Audit
	AppendAudit(ctx context.Context, rec model.AuditRecord) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// defaultListLimit caps ListAudit when no limit is given.
const defaultListLimit = 1000

func listLimit(f AuditFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}
