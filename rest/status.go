package rest

import (
	"fmt"
	"net/http"

	"github.com/pithecene-io/ferry/types"
)

// StatusError is returned when the server answers with a status other than
// the one the call expects. It unwraps to the classification sentinel:
// 401/403 to types.ErrAuthentication, 404 to types.ErrNotFound, anything
// else to types.ErrUnexpectedStatus.
type StatusError struct {
	Method   string
	Resource string
	Code     int
	// Body is the leading part of the response body, for diagnostics.
	Body string
}

func newStatusError(method, resource string, code int, body []byte) *StatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Method: method, Resource: resource, Code: code, Body: string(body)}
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %v: status %d", e.Method, e.Resource, e.Unwrap(), e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap returns the sentinel matching the status code.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.ErrAuthentication
	case http.StatusNotFound:
		return types.ErrNotFound
	default:
		return types.ErrUnexpectedStatus
	}
}
