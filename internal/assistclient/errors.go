// internal/assistclient/errors.go
package assistclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Transport failure categories. Every error returned by Client matches exactly one of them
// under errors.Is.
var (
	// ErrAPIUnreachable means no connection could be established to the endpoint host/port.
	ErrAPIUnreachable = errors.New("assistclient: endpoint unreachable")
	// ErrAPITimeout means the request did not complete within the allowed time.
	ErrAPITimeout = errors.New("assistclient: request timed out")
	// ErrAPIRequest covers every other transport failure: bad status, unreadable or
	// malformed body, request construction errors.
	ErrAPIRequest = errors.New("assistclient: request failed")
)

// APIError carries the failure category together with the underlying transport error, so
// operators see both what kind of failure occurred and the original message.
type APIError struct {
	Op         string // "analyze" or "health"
	URL        string
	Kind       error // ErrAPIUnreachable, ErrAPITimeout or ErrAPIRequest
	StatusCode int   // Set when the endpoint answered with a non-2xx status.
	Err        error
}

// Error implements error.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%v: %s %s", e.Kind, e.Op, e.URL)
	if errors.Is(e.Kind, ErrAPIUnreachable) {
		msg += " (is the assistant server running?)"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the category and the cause to errors.Is/errors.As.
func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

var _ error = (*APIError)(nil)

// classify maps an error from http.Client.Do onto a failure category. Dial failures count as
// unreachable even when the dial itself timed out.
func classify(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ErrAPIUnreachable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrAPIUnreachable
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return ErrAPIUnreachable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrAPITimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrAPITimeout
	}
	return ErrAPIRequest
}
