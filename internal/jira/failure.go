package jira

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FailureKind classifies why a Jira call did not succeed.
type FailureKind string

const (
	// FailureStatus means Jira answered with a non-2xx status.
	FailureStatus FailureKind = "status"
	// FailureTransport means the request never got a response.
	FailureTransport FailureKind = "transport"
	// FailureTimeout means the request ran past its deadline.
	FailureTimeout FailureKind = "timeout"
	// FailureDecode means a 2xx response body was not valid JSON.
	FailureDecode FailureKind = "decode"
)

const maxFailureBodyInError = 512

// Failure is returned by every Client call that does not succeed. Body holds
// the raw upstream response and must not be forwarded to end users.
type Failure struct {
	Kind       FailureKind
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	switch f.Kind {
	case FailureStatus:
		body := f.Body
		if len(body) > maxFailureBodyInError {
			body = body[:maxFailureBodyInError] + "..."
		}
		return fmt.Sprintf("jira %s %s: status %d: %s", f.Method, f.URL, f.StatusCode, body)
	case FailureTimeout:
		return fmt.Sprintf("jira %s %s: timed out: %v", f.Method, f.URL, f.Err)
	default:
		return fmt.Sprintf("jira %s %s: %s: %v", f.Method, f.URL, f.Kind, f.Err)
	}
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

// Timeout reports whether the failure was a deadline.
func (f *Failure) Timeout() bool {
	return f != nil && f.Kind == FailureTimeout
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// IsTimeout reports whether err is a Jira call that timed out.
func IsTimeout(err error) bool {
	failure, ok := AsFailure(err)
	return ok && failure.Timeout()
}

func transportFailure(method, url string, err error) *Failure {
	kind := FailureTransport
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = FailureTimeout
	}
	return &Failure{Kind: kind, Method: method, URL: url, Err: err}
}
