// Package resilience classifies failures and provides retry, backoff and
// circuit-breaking helpers for calls to external providers.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// Kind is the coarse class of a failure, used to decide retries.
type Kind int

const (
	KindPermanent Kind = iota
	KindTransient
	KindQuota
	KindMalformed
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindQuota:
		return "quota"
	case KindMalformed:
		return "malformed"
	case KindCanceled:
		return "canceled"
	default:
		return "permanent"
	}
}

var (
	// ErrQuotaExhausted matches every QuotaError.
	ErrQuotaExhausted = eris.New("monthly quota exhausted")
	// ErrNoCandidates means a reference produced no acquisition attempts.
	ErrNoCandidates = eris.New("no viable acquisition attempts for reference")
)

// TransientError wraps an error that is safe to retry (429, 5xx, timeouts).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError marks err as retryable. statusCode may be 0.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// QuotaError reports a provider whose monthly budget is spent.
type QuotaError struct {
	Provider string
	MonthKey string
	Limit    int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %d calls used for %s: %s", e.Provider, e.Limit, e.MonthKey, ErrQuotaExhausted)
}

// Is makes errors.Is(err, ErrQuotaExhausted) hold.
func (e *QuotaError) Is(target error) bool { return target == ErrQuotaExhausted }

// MalformedError reports a structured payload that failed to parse.
type MalformedError struct {
	What  string
	Index int
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s (#%d)", e.What, e.Index)
}

// NewMalformedError describes an unparseable payload.
func NewMalformedError(what string, index int) *MalformedError {
	return &MalformedError{What: what, Index: index}
}

// Classify maps err onto a Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindPermanent
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrQuotaExhausted):
		return KindQuota
	case errors.Is(err, ErrCircuitOpen):
		return KindTransient
	}
	var me *MalformedError
	if errors.As(err, &me) {
		return KindMalformed
	}
	if IsTransient(err) {
		return KindTransient
	}
	return KindPermanent
}

// retryable is implemented by client errors that know their own retry
// semantics, such as SDK status errors.
type retryable interface {
	Retryable() bool
}

// IsTransient reports whether err (or its chain) is a TransientError or a
// recognizable network blip: timeouts, resets, DNS failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var re retryable
	if errors.As(err, &re) {
		return re.Retryable()
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
		"server closed idle connection",
		"unexpected eof",
		"context deadline exceeded",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is worth retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 425, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// HTTPError builds an error for a non-2xx response, transient when the
// status allows a retry.
func HTTPError(service string, statusCode int, body string) error {
	if len(body) > 200 {
		body = body[:200]
	}
	err := eris.Errorf("%s: status %d: %s", service, statusCode, strings.TrimSpace(body))
	if IsTransientHTTPStatus(statusCode) {
		return NewTransientError(err, statusCode)
	}
	return err
}
