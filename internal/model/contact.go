// Package model defines the records that flow through the contact pipeline.
package model

import "strings"

// Contact is a transient copy of a CRM contact record. It is never cached
// across pipeline invocations.
type Contact struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	PhoneStatus string `json:"phone_status,omitempty"`
	Grade       string `json:"grade,omitempty"`
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// Address returns the contact's current address fields.
func (c Contact) Address() AddressResult {
	return AddressResult{
		Street:     c.Street,
		City:       c.City,
		State:      c.State,
		PostalCode: c.PostalCode,
	}
}

// AddressComplete reports whether all four address fields are populated.
func (c Contact) AddressComplete() bool {
	return c.Address().Complete()
}

// ApplyAddress copies a resolved address onto the local contact copy.
func (c *Contact) ApplyAddress(a AddressResult) {
	c.Street = a.Street
	c.City = a.City
	c.State = a.State
	c.PostalCode = a.PostalCode
}

// AddressResult is a postal address resolved from a phone number.
type AddressResult struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"zip"`
}

// Complete reports whether all four fields are present and non-blank.
func (a AddressResult) Complete() bool {
	for _, v := range []string{a.Street, a.City, a.State, a.PostalCode} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Phone status sentinels written to the CRM on terminal outcomes.
const (
	PhoneStatusInvalid   = "Invalid number"
	PhoneStatusNoAddress = "No address found"
)
