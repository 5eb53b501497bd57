package model

import (
	"strconv"
	"time"
)

// AuditStatus is the outcome recorded for a pipeline step.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "Success"
	AuditFailed  AuditStatus = "Failed"
	AuditSkipped AuditStatus = "Skipped"
	AuditError   AuditStatus = "Error"
)

// AuditRecord is one append-only entry in the audit trail. Duration is in
// seconds and nil when the step was not timed.
type AuditRecord struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Script    string      `json:"script"`
	Step      string      `json:"step"`
	Status    AuditStatus `json:"status"`
	Message   string      `json:"message"`
	Duration  *float64    `json:"duration,omitempty"`
	ContactID string      `json:"contact_id,omitempty"`
}

// DurationString formats Duration with two decimals, or "" when untimed.
func (r AuditRecord) DurationString() string {
	if r.Duration == nil {
		return ""
	}
	return strconv.FormatFloat(*r.Duration, 'f', 2, 64)
}
