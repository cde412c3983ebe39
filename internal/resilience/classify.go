package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Kind classifies a failure at the transport boundary so retry decisions do not
// depend on string sniffing when the producer can say what went wrong.
type Kind int

const (
	// KindUnknown means the error carries no explicit kind; keyword matching decides.
	KindUnknown Kind = iota
	// KindNetwork indicates a transient connectivity failure (retry may help)
	KindNetwork
	// KindAuth indicates an authentication/authorization failure (retry will not help)
	KindAuth
	// KindPermanent indicates any other non-retryable failure
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// WithKind tags err with an explicit kind for Classify.
func WithKind(err error, k Kind) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: k, err: err}
}

var authKeywords = []string{
	"unauthorized",
	"401",
	"403",
	"forbidden",
	"invalid api key",
	"authentication",
}

var networkKeywords = []string{
	"network",
	"connection",
	"timeout",
	"timed out",
	"disconnected",
	"unreachable",
	"refused",
	"reset",
	"dns",
	"no such host",
	"socket",
	"broken pipe",
	"offline",
}

// Classify categorizes an error. Explicit kinds win; otherwise the decision
// falls back to case-insensitive keyword matching on the error string, auth
// keywords checked before network ones.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	if errors.Is(err, context.Canceled) {
		return KindPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())
	for _, kw := range authKeywords {
		if strings.Contains(msg, kw) {
			return KindAuth
		}
	}
	for _, kw := range networkKeywords {
		if strings.Contains(msg, kw) {
			return KindNetwork
		}
	}
	return KindPermanent
}

// IsRetryable reports whether the retrier should requeue the failed operation.
func IsRetryable(err error) bool {
	return Classify(err) == KindNetwork
}
