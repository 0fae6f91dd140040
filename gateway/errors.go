package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed API call.
type ErrorKind string

const (
	NetworkError    ErrorKind = "network_error"    // No response was received
	AuthExpired     ErrorKind = "auth_expired"     // 401
	Forbidden       ErrorKind = "forbidden"        // 403
	ValidationError ErrorKind = "validation_error" // Other 4xx with a JSON:API errors payload
	ClientError     ErrorKind = "client_error"     // Other 4xx without one
	ServerError     ErrorKind = "server_error"     // 5xx
)

// ErrorSource identifies the part of the request an error applies to.
type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`   // e.g. "/data/attributes/email"
	Parameter string `json:"parameter,omitempty"` // Query parameter name
}

// ErrorObject is a single JSON:API error.
type ErrorObject struct {
	ID     string       `json:"id,omitempty"`
	Status string       `json:"status,omitempty"`
	Code   string       `json:"code,omitempty"`
	Title  string       `json:"title,omitempty"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
}

type errorDocument struct {
	Errors []ErrorObject `json:"errors"`
}

// APIError is returned for every failed call that the gateway does not recover from itself.
type APIError struct {
	Kind       ErrorKind
	Method     string
	Route      string
	StatusCode int           // 0 for NetworkError
	Errors     []ErrorObject // Parsed JSON:API errors, if any
	Body       []byte
	Err        error // Underlying transport error for NetworkError
}

func (e *APIError) Error() string {
	if e.Kind == NetworkError {
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Route, e.Kind, e.Err)
	}
	if len(e.Errors) > 0 && e.Errors[0].Detail != "" {
		return fmt.Sprintf("%s %s: %s (%d): %s", e.Method, e.Route, e.Kind, e.StatusCode, e.Errors[0].Detail)
	}
	return fmt.Sprintf("%s %s: %s (%d)", e.Method, e.Route, e.Kind, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Classify maps a non-2xx status to an ErrorKind. hasErrors reports whether the body
// carried a JSON:API errors array.
func Classify(status int, hasErrors bool) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return AuthExpired
	case status == http.StatusForbidden:
		return Forbidden
	case status >= 500:
		return ServerError
	case hasErrors:
		return ValidationError
	}
	return ClientError
}

func newStatusError(method, route string, status int, body []byte) *APIError {
	var doc errorDocument
	if len(body) > 0 {
		_ = json.Unmarshal(body, &doc)
	}
	return &APIError{
		Kind:       Classify(status, len(doc.Errors) > 0),
		Method:     method,
		Route:      route,
		StatusCode: status,
		Errors:     doc.Errors,
		Body:       body,
	}
}

// ErrorFromPointer returns the detail of the JSON:API error whose source pointer is
// /data/attributes/<field>, or "" if err carries no such error.
func ErrorFromPointer(err error, field string) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return ""
	}
	pointer := "/data/attributes/" + field
	for _, e := range apiErr.Errors {
		if e.Source != nil && e.Source.Pointer == pointer {
			return e.Detail
		}
	}
	return ""
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
