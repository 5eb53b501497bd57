// Package enrich resolves phone numbers to postal addresses through the
// reverse-lookup provider.
package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/contact-sync/internal/model"
	"github.com/sells-group/contact-sync/internal/resilience"
	"github.com/sells-group/contact-sync/pkg/trestle"
)

const service = "trestle"

// Kind tags an Outcome.
type Kind int

const (
	// KindComplete carries a usable address.
	KindComplete Kind = iota
	// KindNoMatch means the provider found no usable address.
	KindNoMatch
	// KindError means the lookup itself failed.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindComplete:
		return "complete"
	case KindNoMatch:
		return "no_match"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of a lookup. Address is set only for
// KindComplete, Reason only for KindNoMatch, Err only for KindError.
type Outcome struct {
	Kind    Kind
	Address model.AddressResult
	Reason  string
	Err     error
}

// Complete builds a KindComplete outcome.
func Complete(a model.AddressResult) Outcome { return Outcome{Kind: KindComplete, Address: a} }

// NoMatch builds a KindNoMatch outcome.
func NoMatch(reason string) Outcome { return Outcome{Kind: KindNoMatch, Reason: reason} }

// Failure builds a KindError outcome.
func Failure(err error) Outcome { return Outcome{Kind: KindError, Err: err} }

// Options tune a single lookup.
type Options struct {
	// NameHint is the expected owner name; empty means no hint.
	NameHint string
}

// Enricher performs reverse-phone lookups. A nil provider client means the
// provider is not configured.
type Enricher struct {
	client  trestle.Client
	breaker *resilience.Breaker
	timeout time.Duration
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithBreaker guards lookups with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(e *Enricher) { e.breaker = b }
}

// WithTimeout bounds each lookup with a context deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Enricher) { e.timeout = d }
}

// New builds an Enricher over client.
func New(client trestle.Client, opts ...Option) *Enricher {
	e := &Enricher{client: client}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Lookup resolves phone to an address. It never retries.
func (e *Enricher) Lookup(ctx context.Context, phone string, opts Options) Outcome {
	if e == nil || e.client == nil {
		return Failure(resilience.Configuration(service))
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var lookupOpts []trestle.LookupOption
	if hint := strings.TrimSpace(opts.NameHint); hint != "" {
		lookupOpts = append(lookupOpts, trestle.WithNameHint(hint))
	}

	resp, err := resilience.Call(ctx, e.breaker, func(ctx context.Context) (*trestle.PhoneResponse, error) {
		resp, err := e.client.ReversePhone(ctx, phone, lookupOpts...)
		return resp, classify(err)
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			err = resilience.Unexpected(service, err)
		}
		zap.L().Debug("enrich: lookup failed",
			zap.String("kind", string(resilience.KindOf(err))),
			zap.Bool("transient", resilience.IsTransient(err)),
			zap.Error(err),
		)
		return Failure(err)
	}
	return fromResponse(resp)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *trestle.APIError
	if errors.As(err, &apiErr) {
		return resilience.Provider(service, apiErr.StatusCode, apiErr.Body)
	}
	return resilience.Unexpected(service, err)
}

// fromResponse maps the first owner's first current address. Anything short
// of a complete address is a no-match.
func fromResponse(resp *trestle.PhoneResponse) Outcome {
	if resp == nil || len(resp.Owners) == 0 {
		return NoMatch("no owners returned")
	}
	owner := resp.Owners[0]
	if len(owner.CurrentAddresses) == 0 {
		return NoMatch("owner has no current address")
	}
	a := owner.CurrentAddresses[0]
	if strings.TrimSpace(a.StreetLine1) == "" {
		return NoMatch("address has no street line")
	}
	addr := model.AddressResult{
		Street:     strings.TrimSpace(a.StreetLine1),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.StateCode),
		PostalCode: strings.TrimSpace(a.PostalCode),
	}
	if !addr.Complete() {
		return NoMatch("address is incomplete")
	}
	return Complete(addr)
}
