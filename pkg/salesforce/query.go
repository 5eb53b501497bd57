package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Contact represents a Salesforce Contact record. PhoneStatus and Grade are
// custom fields.
type Contact struct {
	ID                string `json:"Id" salesforce:"Id"`
	FirstName         string `json:"FirstName" salesforce:"FirstName"`
	LastName          string `json:"LastName" salesforce:"LastName"`
	Phone             string `json:"Phone" salesforce:"Phone"`
	MailingStreet     string `json:"MailingStreet" salesforce:"MailingStreet"`
	MailingCity       string `json:"MailingCity" salesforce:"MailingCity"`
	MailingState      string `json:"MailingState" salesforce:"MailingState"`
	MailingPostalCode string `json:"MailingPostalCode" salesforce:"MailingPostalCode"`
	PhoneStatus       string `json:"Phone_Status__c" salesforce:"Phone_Status__c"`
	Grade             string `json:"Grade__c" salesforce:"Grade__c"`
}

// contactFields are the SOQL fields selected for Contact queries.
var contactFields = []string{
	"Id", "FirstName", "LastName", "Phone",
	"MailingStreet", "MailingCity", "MailingState", "MailingPostalCode",
	"Phone_Status__c", "Grade__c",
}

// FindContactByID queries Salesforce for a Contact by its ID.
// Returns nil if no contact is found.
func FindContactByID(ctx context.Context, c Client, id string) (*Contact, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE Id = '%s' LIMIT 1",
		strings.Join(contactFields, ", "),
		escapeSoql(id),
	)

	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find contact by id %s", id))
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// RecentContacts returns up to limit Contacts, most recently modified first.
func RecentContacts(ctx context.Context, c Client, limit int) ([]Contact, error) {
	if limit <= 0 {
		return nil, nil
	}
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact ORDER BY LastModifiedDate DESC LIMIT %d",
		strings.Join(contactFields, ", "),
		limit,
	)

	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, "sf: recent contacts")
	}
	return contacts, nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
