// Package hubspot provides a client for the HubSpot CRM v3 contacts API.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.hubapi.com"
	contactsPath   = "/crm/v3/objects/contacts"
	// maxPageSize is the search endpoint's page size ceiling.
	maxPageSize = 100
)

// Client defines the HubSpot contact operations used by the pipeline.
type Client interface {
	GetContact(ctx context.Context, id string, properties []string) (*Object, error)
	SearchRecent(ctx context.Context, limit int, properties []string) ([]Object, error)
	UpdateContact(ctx context.Context, id string, properties map[string]string) error
}

// Object is a CRM object as returned by the v3 API.
type Object struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// APIError is a non-2xx response from HubSpot.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hubspot: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the HubSpot client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout bounds every API call.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit overrides the default limit of 9 requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a HubSpot client authenticated with a private app token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(9, 9),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) GetContact(ctx context.Context, id string, properties []string) (*Object, error) {
	q := url.Values{}
	if len(properties) > 0 {
		q.Set("properties", strings.Join(properties, ","))
	}
	path := fmt.Sprintf("%s/%s?%s", contactsPath, url.PathEscape(id), q.Encode())

	var obj Object
	if err := c.do(ctx, http.MethodGet, path, nil, &obj); err != nil {
		return nil, eris.Wrapf(err, "hubspot: get contact %s", id)
	}
	return &obj, nil
}

type searchRequest struct {
	Sorts      []searchSort `json:"sorts"`
	Properties []string     `json:"properties,omitempty"`
	Limit      int          `json:"limit"`
	After      string       `json:"after,omitempty"`
}

type searchSort struct {
	PropertyName string `json:"propertyName"`
	Direction    string `json:"direction"`
}

type searchResponse struct {
	Total   int      `json:"total"`
	Results []Object `json:"results"`
	Paging  *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

// SearchRecent returns up to limit contacts ordered by last modification,
// newest first.
func (c *httpClient) SearchRecent(ctx context.Context, limit int, properties []string) ([]Object, error) {
	if limit <= 0 {
		return nil, nil
	}

	var out []Object
	after := ""
	for len(out) < limit {
		req := searchRequest{
			Sorts:      []searchSort{{PropertyName: "lastmodifieddate", Direction: "DESCENDING"}},
			Properties: properties,
			Limit:      min(limit-len(out), maxPageSize),
			After:      after,
		}
		var resp searchResponse
		if err := c.do(ctx, http.MethodPost, contactsPath+"/search", req, &resp); err != nil {
			return out, eris.Wrap(err, "hubspot: search contacts")
		}
		out = append(out, resp.Results...)
		if resp.Paging == nil || resp.Paging.Next == nil || resp.Paging.Next.After == "" || len(resp.Results) == 0 {
			break
		}
		after = resp.Paging.Next.After
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *httpClient) UpdateContact(ctx context.Context, id string, properties map[string]string) error {
	body := map[string]any{"properties": properties}
	path := fmt.Sprintf("%s/%s", contactsPath, url.PathEscape(id))
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return eris.Wrapf(err, "hubspot: update contact %s", id)
	}
	return nil
}

// do sends one request and decodes a 2xx JSON body into out (if non-nil).
// Non-2xx responses are returned as *APIError.
func (c *httpClient) do(ctx context.Context, method, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit")
		}
	}

	var reqBody io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}
