package influx

import (
	"bytes"
	"fmt"
	"net/http"
)

// Kind classifies the outcome of one write attempt.
type Kind int

const (
	// Success means the server accepted the payload.
	Success Kind = iota
	// Transient failures are worth retrying: network errors, 5xx and
	// malformed or unexpected responses.
	Transient
	// Permanent failures will not go away on retry: bad credentials or a
	// missing database.
	Permanent
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Result is the outcome of one write attempt.
type Result struct {
	Kind Kind
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	Err        error
}

// OK reports whether the attempt succeeded.
func (r Result) OK() bool {
	return r.Kind == Success
}

func ok(status int) Result {
	return Result{Kind: Success, StatusCode: status}
}

func transient(status int, err error) Result {
	return Result{Kind: Transient, StatusCode: status, Err: err}
}

func permanent(status int, err error) Result {
	return Result{Kind: Permanent, StatusCode: status, Err: err}
}

var (
	successMarker  = []byte("results")
	notFoundMarker = []byte("database not found")
)

// maxBodyInError bounds how much of a response body is quoted in errors.
const maxBodyInError = 256

// Classify maps an HTTP status and response body to a Result. 204 is a
// success, as is a 2xx body carrying the query results marker. 401 and 403
// are permanent credential failures; 404 or a body reporting a missing
// database is a permanent not-found failure. Everything else is transient.
func Classify(status int, body []byte) Result {
	switch {
	case status == http.StatusNoContent:
		return ok(status)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return permanent(status, fmt.Errorf("%w: HTTP %d: %s", ErrUnauthorized, status, snippet(body)))
	case status == http.StatusNotFound || bytes.Contains(body, notFoundMarker):
		return permanent(status, fmt.Errorf("%w: HTTP %d: %s", ErrNotFound, status, snippet(body)))
	case status >= 200 && status < 300 && bytes.Contains(body, successMarker):
		return ok(status)
	default:
		return transient(status, fmt.Errorf("%w: HTTP %d: %s", ErrUnexpectedResponse, status, snippet(body)))
	}
}

func snippet(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) > maxBodyInError {
		return string(body[:maxBodyInError]) + "..."
	}
	return string(body)
}
