package remote

import (
	"errors"
	"net/http"
	"strings"
)

// ErrorClass partitions sync failures into the two retry behaviors the
// engine implements.
type ErrorClass int

const (
	// Transient failures are connectivity-shaped: the same request is
	// expected to succeed later, so the engine enters a cooldown window
	// instead of surfacing an alarming error.
	Transient ErrorClass = iota
	// Permanent failures (auth, validation, programming errors) are
	// surfaced immediately with their original message and never retried
	// silently.
	Permanent
)

func (c ErrorClass) String() string {
	switch c {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// transientSignatures are message fragments produced by network partitions,
// proxy failures, and load-shedding backends.
var transientSignatures = []string{
	"failed to fetch",
	"network",
	"cors",
	"gateway timeout",
	"statement timeout",
	"connection refused",
	"connection reset",
	"no such host",
	"timeout",
	"timed out",
	"abort",
	"temporarily unavailable",
	"eof",
}

// permanentSignatures are message fragments that indicate the request
// itself is wrong and retrying cannot help.
var permanentSignatures = []string{
	"jwt",
	"auth",
	"unauthorized",
	"forbidden",
	"invalid",
	"violates",
	"malformed",
	"not found",
}

// Classify maps an error to transient or permanent by inspecting both the
// HTTP status (when the error came off the wire) and the error message
// against a fixed set of substring signatures. Unknown errors are treated
// as transient: hammering a broken endpoint is worse than a spurious
// cooldown, and pending rows are never lost either way.
func Classify(err error) ErrorClass {
	if err == nil {
		return Transient
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusUnauthorized,
			httpErr.StatusCode == http.StatusForbidden,
			httpErr.StatusCode == http.StatusUnprocessableEntity,
			httpErr.StatusCode == http.StatusNotFound,
			httpErr.StatusCode == http.StatusBadRequest:
			return Permanent
		case httpErr.StatusCode == http.StatusTooManyRequests,
			httpErr.StatusCode >= 500:
			return Transient
		}
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range permanentSignatures {
		if strings.Contains(msg, sig) {
			return Permanent
		}
	}
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return Transient
		}
	}
	return Transient
}
