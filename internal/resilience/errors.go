// Package resilience classifies failures from external services and guards
// provider calls with circuit breakers. Nothing in this package retries.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// Kind is the failure class of a pipeline error.
type Kind string

const (
	// KindValidation covers missing or malformed request fields. Always a client fault.
	KindValidation Kind = "validation"
	// KindConfiguration means a required secret or endpoint is absent.
	KindConfiguration Kind = "configuration"
	// KindNoMatch means enrichment found nothing. Not a system fault.
	KindNoMatch Kind = "no_match"
	// KindProvider is a non-2xx response from the CRM, lookup provider or partner.
	KindProvider Kind = "provider"
	// KindUnexpected is everything else, including transport failures.
	KindUnexpected Kind = "unexpected"
)

// Error is the typed failure carried through the pipeline. Service names the
// external collaborator involved ("crm", "trestle", "partner", ...).
type Error struct {
	Kind       Kind
	Service    string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindProvider:
		return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Body)
	case KindConfiguration:
		if e.Err != nil {
			return fmt.Sprintf("%s: not configured: %s", e.Service, e.Err.Error())
		}
		return fmt.Sprintf("%s: not configured", e.Service)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Service, e.Kind)
	}
	if e.Service == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports a client-side input problem.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Err: eris.Errorf(format, args...)}
}

// Configuration reports that service cannot be called because its
// configuration is missing.
func Configuration(service string) error {
	return &Error{Kind: KindConfiguration, Service: service}
}

// Misconfigured reports that service has configuration problems.
func Misconfigured(service string, problems ...string) error {
	return &Error{Kind: KindConfiguration, Service: service, Err: eris.New(strings.Join(problems, "; "))}
}

// NoMatch reports an empty enrichment result.
func NoMatch(service, format string, args ...any) error {
	return &Error{Kind: KindNoMatch, Service: service, Err: eris.Errorf(format, args...)}
}

// Provider reports a non-2xx response, keeping the status code and body for
// diagnosis.
func Provider(service string, statusCode int, body string) error {
	return &Error{Kind: KindProvider, Service: service, StatusCode: statusCode, Body: truncate(body, 2000)}
}

// Unexpected wraps any other failure with a stack trace for the audit trail.
// Errors that are already typed pass through unchanged.
func Unexpected(service string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: KindUnexpected, Service: service, Err: eris.Wrap(err, service)}
}

// KindOf returns the failure class of err. Untyped errors are unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindUnexpected
}

// StatusCode returns the provider status code carried by err, or 0.
func StatusCode(err error) int {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.StatusCode
	}
	return 0
}

// Detail renders err with its full eris context (stack frames included) for
// audit messages.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) && typed.Err != nil && typed.Kind == KindUnexpected {
		return eris.ToString(typed.Err, true)
	}
	return err.Error()
}

// IsTransient reports whether err looks like a temporary condition (timeout,
// reset connection, 429/5xx). Used for diagnostics only.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var typed *Error
	if errors.As(err, &typed) && typed.Kind == KindProvider {
		return IsTransientHTTPStatus(typed.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"tls handshake timeout",
		"i/o timeout",
		"context deadline exceeded",
		"client.timeout exceeded",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus returns true for 408, 429 and the retry-safe 5xx codes.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
