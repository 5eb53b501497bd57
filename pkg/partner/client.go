// Package partner delivers complete contacts to the downstream partner webhook.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Payload is the body the partner webhook expects.
type Payload struct {
	UniqueID  string `json:"unique_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
}

// Client posts contacts to the partner.
type Client interface {
	Deliver(ctx context.Context, p Payload) error
}

// APIError is any response other than 200 OK.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("partner: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the partner client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout bounds every delivery.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

type httpClient struct {
	url  string
	http *http.Client
}

// NewClient creates a client posting to webhookURL.
func NewClient(webhookURL string, opts ...Option) Client {
	c := &httpClient{
		url:  webhookURL,
		http: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Deliver posts p. Only HTTP 200 counts as delivered.
func (c *httpClient) Deliver(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "partner: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "partner: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "partner: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
