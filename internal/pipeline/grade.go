package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/contact-sync/internal/resilience"
)

// UpdateGrade writes a grade received from the partner onto the contact.
func (p *Pipeline) UpdateGrade(ctx context.Context, contactID, grade string) error {
	if strings.TrimSpace(contactID) == "" {
		return resilience.Validation("unique_id or record_id is required")
	}
	if strings.TrimSpace(grade) == "" {
		return resilience.Validation("grade is required")
	}

	return p.audit.WithContact(contactID).SafeExecute(ctx, StepGradeUpdate, func(ctx context.Context) (string, error) {
		callCtx, cancel := p.bounded(ctx)
		defer cancel()
		if r := p.updater.UpdateGrade(callCtx, contactID, grade); !r.OK {
			return "", r.Err
		}
		return fmt.Sprintf("Set grade %s on contact %s", grade, contactID), nil
	})
}
