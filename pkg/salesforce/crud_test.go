package salesforce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateContact(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var capturedObject, capturedID string
		var capturedFields map[string]any
		mc := &mockClient{
			updateOneFn: func(_ context.Context, sObject string, id string, fields map[string]any) error {
				capturedObject = sObject
				capturedID = id
				capturedFields = fields
				return nil
			},
		}

		err := UpdateContact(context.Background(), mc, "003xx", map[string]any{"MailingCity": "San Diego"})
		require.NoError(t, err)
		assert.Equal(t, "Contact", capturedObject)
		assert.Equal(t, "003xx", capturedID)
		assert.Equal(t, "San Diego", capturedFields["MailingCity"])
	})

	t.Run("missing id", func(t *testing.T) {
		err := UpdateContact(context.Background(), &mockClient{}, "", map[string]any{"Grade__c": "A"})
		assert.ErrorContains(t, err, "contact id is required")
	})

	t.Run("no fields", func(t *testing.T) {
		err := UpdateContact(context.Background(), &mockClient{}, "003xx", nil)
		assert.ErrorContains(t, err, "no fields to update")
	})

	t.Run("propagates error", func(t *testing.T) {
		mc := &mockClient{
			updateOneFn: func(_ context.Context, _ string, _ string, _ map[string]any) error {
				return errors.New("api error")
			},
		}
		err := UpdateContact(context.Background(), mc, "003xx", map[string]any{"Grade__c": "A"})
		assert.ErrorContains(t, err, "update contact 003xx")
	})
}
