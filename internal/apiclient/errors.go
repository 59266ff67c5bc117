package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// GenericMessage is the message of last resort for a failed request.
const GenericMessage = "Unexpected network error."

// TransportError is a failed round trip or a non-2xx response. Response is
// nil when no HTTP response was received.
type TransportError struct {
	Method   string
	URL      string
	Timeout  time.Duration
	Response *Response
	Err      error
}

func (e *TransportError) Error() string {
	switch {
	case e.Response != nil:
		return fmt.Sprintf("Request failed with status code %d", e.Response.StatusCode)
	case e.timedOut():
		return fmt.Sprintf("timeout of %dms exceeded", e.Timeout.Milliseconds())
	case e.Err != nil:
		return e.Err.Error()
	default:
		return ""
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) timedOut() bool {
	if e.Err == nil || e.Timeout <= 0 {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// APIError is the uniform shape every failed request is normalized into.
// Status is nil when no HTTP response was received.
type APIError struct {
	Status  *int   `json:"status"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`

	cause error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// HTTPStatus returns the response status code, or 0 if there was none.
func (e *APIError) HTTPStatus() int {
	if e.Status == nil {
		return 0
	}
	return *e.Status
}

// Normalize converts any failure into an *APIError. Transport errors keep
// their status and body; the message prefers the server's "detail" field,
// then the transport message, then GenericMessage. Anything else becomes a
// status-less error carrying err as its details.
func Normalize(err error) *APIError {
	var te *TransportError
	if !errors.As(err, &te) {
		return &APIError{Message: GenericMessage, Details: err, cause: err}
	}

	out := &APIError{cause: te}
	if te.Response != nil {
		status := te.Response.StatusCode
		out.Status = &status
		out.Details = te.Response.Data()
	}
	out.Message = firstNonEmpty(serverDetail(te.Response), te.Error(), GenericMessage)
	return out
}

// serverDetail extracts a string "detail" field from a JSON object body.
func serverDetail(r *Response) string {
	if r == nil || len(r.Body) == 0 {
		return ""
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(r.Body, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err != nil {
		return ""
	}
	return detail
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
