package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrSessionExpired is returned when the inventory API answers 401.
// The stored bearer token must be discarded and the user sent back to login.
var ErrSessionExpired = errors.New("session expired")

// NetworkError means the request never reached the API or no response arrived
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("no response from inventory API for %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError is a non-2xx answer from the inventory API
type ServerError struct {
	StatusCode int
	StatusText string
	// Detail is the "detail" or "message" field of a structured error body, if any
	Detail string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("inventory API responded with %d: %s", e.StatusCode, e.Message())
}

// Message returns the structured error detail, falling back to the status text
func (e *ServerError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.StatusText
}

func newServerError(resp *http.Response, body []byte) *ServerError {
	return &ServerError{
		StatusCode: resp.StatusCode,
		StatusText: statusText(resp),
		Detail:     extractDetail(body),
	}
}

func statusText(resp *http.Response) string {
	// resp.Status carries the reason phrase the server sent, e.g. "404 Not Found"
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// extractDetail pulls a human readable message out of an error body.
// Non-string detail values (e.g. validation error lists) are ignored.
func extractDetail(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "message"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// IsNetworkError reports whether err is (or wraps) a NetworkError
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// AsServerError returns the ServerError carried by err, if any
func AsServerError(err error) (*ServerError, bool) {
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return srvErr, true
	}
	return nil, false
}
