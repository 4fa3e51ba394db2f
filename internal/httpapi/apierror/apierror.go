// Package apierror defines the error taxonomy shared between the cache,
// the upstream client, and the router: a small set of named kinds, each
// with a fixed mapping to a caller-visible HTTP status.
package apierror

import "fmt"

// Kind enumerates the error origins distinguished by the router's top-level
// error handling.
type Kind string

const (
	InvalidInput        Kind = "InvalidInput"
	RateLimited         Kind = "RateLimited"
	UpstreamRateLimited Kind = "UpstreamRateLimited"
	UpstreamStatus      Kind = "UpstreamStatus"
	UpstreamTransport   Kind = "UpstreamTransport"
	CacheProbeFailure   Kind = "CacheProbeFailure"
	CacheWriteFailure   Kind = "CacheWriteFailure"
	RevalidationFailure Kind = "RevalidationFailure"
	Abandoned           Kind = "Abandoned"
)

// Error is the concrete error type carrying a Kind plus enough context to
// render a caller-visible response.
type Error struct {
	Kind           Kind
	Message        string
	UpstreamStatus int // set only for Kind == UpstreamStatus
	RetryAfter     int // seconds; set for RateLimited and UpstreamRateLimited
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewUpstreamStatus builds an UpstreamStatus error mirroring the upstream's
// own status code and reason phrase.
func NewUpstreamStatus(status int, reason string) *Error {
	return &Error{Kind: UpstreamStatus, Message: reason, UpstreamStatus: status}
}

// NewRateLimited builds a local RateLimited error with the retry-after
// window computed by the limiter.
func NewRateLimited(retryAfter int) *Error {
	return &Error{Kind: RateLimited, Message: "rate limited", RetryAfter: retryAfter}
}

// NewUpstreamRateLimited builds an UpstreamRateLimited error; the spec
// fixes its Retry-After at 60 regardless of what the upstream reported.
func NewUpstreamRateLimited() *Error {
	return &Error{Kind: UpstreamRateLimited, Message: "Rate limited by upstream API", RetryAfter: 60}
}

// NewInvalidInput builds an InvalidInput error listing offending values.
func NewInvalidInput(message string) *Error {
	return &Error{Kind: InvalidInput, Message: message}
}

// Status returns the caller-visible HTTP status for e's kind.
func (e *Error) Status() int {
	switch e.Kind {
	case InvalidInput:
		return 400
	case RateLimited, UpstreamRateLimited:
		return 429
	case UpstreamStatus:
		if e.UpstreamStatus != 0 {
			return e.UpstreamStatus
		}
		return 502
	case UpstreamTransport:
		return 502
	default:
		return 500
	}
}
