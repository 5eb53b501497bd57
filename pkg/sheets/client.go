// Package sheets appends and reads rows in a Google Sheets spreadsheet.
package sheets

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// Client defines the spreadsheet operations used by the audit trail.
type Client interface {
	// AppendRow adds one row after the last populated row of the range.
	AppendRow(ctx context.Context, row []any) error
	// ReadRows returns every row in the range, header included.
	ReadRows(ctx context.Context) ([][]string, error)
}

// Config selects the spreadsheet and how to authenticate.
type Config struct {
	SpreadsheetID   string
	Range           string
	CredentialsFile string
	CredentialsJSON string
}

// Option configures the Sheets client.
type Option func(*settings)

type settings struct {
	clientOpts []option.ClientOption
	rps        float64
}

// WithClientOptions passes extra google API options (endpoint, HTTP client).
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *settings) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

// WithRateLimit caps API calls per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(s *settings) {
		s.rps = rps
	}
}

type sheetsClient struct {
	svc           *gsheets.Service
	spreadsheetID string
	rng           string
	limiter       *rate.Limiter
}

// NewClient builds a Sheets client from service account credentials.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, eris.New("sheets: spreadsheet id is required")
	}
	s := &settings{rps: 1}
	for _, opt := range opts {
		opt(s)
	}

	var clientOpts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	clientOpts = append(clientOpts, s.clientOpts...)

	svc, err := gsheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: create service")
	}

	rng := cfg.Range
	if rng == "" {
		rng = "Sheet1!A:F"
	}
	c := &sheetsClient{svc: svc, spreadsheetID: cfg.SpreadsheetID, rng: rng}
	if s.rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(s.rps), max(int(s.rps), 1))
	}
	return c, nil
}

func (c *sheetsClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *sheetsClient) AppendRow(ctx context.Context, row []any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "sheets: rate limit")
	}
	vr := &gsheets.ValueRange{Values: [][]any{row}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return eris.Wrap(err, "sheets: append row")
	}
	return nil
}

func (c *sheetsClient) ReadRows(ctx context.Context) ([][]string, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sheets: rate limit")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng).Context(ctx).Do()
	if err != nil {
		return nil, eris.Wrap(err, "sheets: read rows")
	}
	out := make([][]string, 0, len(resp.Values))
	for _, r := range resp.Values {
		row := make([]string, len(r))
		for i, v := range r {
			row[i] = fmt.Sprint(v)
		}
		out = append(out, row)
	}
	return out, nil
}
