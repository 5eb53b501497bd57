// Package trestle provides a client for the Trestle reverse phone API.
package trestle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.trestleiq.com"

// Client defines the Trestle operations used by the enricher.
type Client interface {
	// ReversePhone resolves a phone number to its owners and their addresses.
	ReversePhone(ctx context.Context, phone string, opts ...LookupOption) (*PhoneResponse, error)
}

// PhoneResponse is the body of GET /3.2/phone.
type PhoneResponse struct {
	ID          string   `json:"id"`
	PhoneNumber string   `json:"phone_number"`
	IsValid     *bool    `json:"is_valid"`
	LineType    string   `json:"line_type"`
	Carrier     string   `json:"carrier"`
	Owners      []Owner  `json:"owners"`
	Warnings    []string `json:"warnings"`
}

// Owner is a person or business associated with the phone.
type Owner struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	CurrentAddresses []Address `json:"current_addresses"`
}

// Address is a postal address attached to an owner.
type Address struct {
	ID          string `json:"id"`
	StreetLine1 string `json:"street_line_1"`
	StreetLine2 string `json:"street_line_2"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
	StateCode   string `json:"state_code"`
	CountryCode string `json:"country_code"`
}

// APIError is a non-2xx response from Trestle.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trestle: unexpected status %d: %s", e.StatusCode, e.Body)
}

// LookupOption configures a single lookup.
type LookupOption func(url.Values)

// WithNameHint passes the expected owner name to improve matching.
func WithNameHint(name string) LookupOption {
	return func(v url.Values) {
		if name != "" {
			v.Set("phone.name_hint", name)
		}
	}
}

// WithCountryHint overrides the default "US" country hint.
func WithCountryHint(country string) LookupOption {
	return func(v url.Values) {
		if country != "" {
			v.Set("phone.country_hint", country)
		}
	}
}

// Option configures the Trestle client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout bounds every lookup call.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit caps lookups per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new Trestle client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) ReversePhone(ctx context.Context, phone string, opts ...LookupOption) (*PhoneResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "trestle: rate limit")
		}
	}

	params := url.Values{}
	params.Set("phone", phone)
	params.Set("phone.country_hint", "US")
	for _, opt := range opts {
		opt(params)
	}

	reqURL := fmt.Sprintf("%s/3.2/phone?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "trestle: create request")
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "trestle: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "trestle: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result PhoneResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "trestle: unmarshal response")
	}
	return &result, nil
}
