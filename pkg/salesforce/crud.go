package salesforce

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// UpdateContact updates a Contact record with the given fields.
func UpdateContact(ctx context.Context, c Client, contactID string, fields map[string]any) error {
	if contactID == "" {
		return eris.New("sf: contact id is required")
	}
	if len(fields) == 0 {
		return eris.New("sf: no fields to update")
	}
	if err := c.UpdateOne(ctx, "Contact", contactID, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update contact %s", contactID))
	}
	return nil
}
