package bind

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
)

// Sentinel errors.
var (
	ErrAmbientState    = errors.New("ambient state unavailable")
	ErrServiceNotFound = errors.New("service not found")
	ErrMalformedForm   = errors.New("malformed form")
	ErrBodyTooLarge    = errors.New("request body too large")
)

// malformedBodyDetail is the fixed diagnostic returned for undecodable payloads.
const malformedBodyDetail = "There was an error parsing the body"

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ErrorKind classifies a FieldError.
type ErrorKind string

// Field error kinds.
const (
	KindMissing   ErrorKind = "missing"
	KindInvalid   ErrorKind = "invalid"
	KindMalformed ErrorKind = "malformed"
)

// Location is the ordered path of a field error: the source kind first,
// then the alias, then any sub-keys.
type Location []string

// String joins the location with dots.
func (l Location) String() string { return strings.Join(l, ".") }

// Child returns a copy of l extended with keys.
func (l Location) Child(keys ...string) Location {
	out := make(Location, 0, len(l)+len(keys))
	out = append(out, l...)
	return append(out, keys...)
}

// FieldError describes one failure to bind or validate a value.
type FieldError struct {
	Loc        Location  `json:"loc"`
	Msg        string    `json:"msg"`
	Kind       ErrorKind `json:"type"`
	Constraint string    `json:"constraint,omitempty"`
	Input      any       `json:"input,omitempty"`
}

func (e FieldError) Error() string {
	return e.Loc.String() + ": " + e.Msg
}

func missingError(loc Location) FieldError {
	return FieldError{Loc: loc, Msg: "field required", Kind: KindMissing}
}

func invalidError(loc Location, msg string, input any) FieldError {
	return FieldError{Loc: loc, Msg: msg, Kind: KindInvalid, Input: input}
}

// RequestValidationError aggregates every FieldError from one resolution.
// It is also used for response values that fail their declared schema.
type RequestValidationError struct {
	Errors []FieldError
	Status int
}

func (e *RequestValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0].Error()
	}
	return fmt.Sprintf("validation failed: %d errors", len(e.Errors))
}

// Malformed reports whether any error is a malformed payload.
func (e *RequestValidationError) Malformed() bool {
	for _, fe := range e.Errors {
		if fe.Kind == KindMalformed {
			return true
		}
	}
	return false
}

// StatusCode returns 400 for malformed payloads, otherwise the configured
// validation status (422 by default).
func (e *RequestValidationError) StatusCode() int {
	if e.Malformed() {
		return http.StatusBadRequest
	}
	if e.Status != 0 {
		return e.Status
	}
	return http.StatusUnprocessableEntity
}

// Problem renders the error as a problem details document.
func (e *RequestValidationError) Problem() *ProblemDetail {
	status := e.StatusCode()
	pd := &ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Errors: e.Errors,
	}
	if e.Malformed() {
		pd.Detail = malformedBodyDetail
	} else {
		pd.Detail = fmt.Sprintf("%d validation error(s)", len(e.Errors))
	}
	return pd
}

// asValidationError wraps a validator failure as a *RequestValidationError
// unless it already carries a status.
func asValidationError(err error, status int) error {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return err
	}
	var fe FieldError
	if errors.As(err, &fe) {
		return &RequestValidationError{Errors: []FieldError{fe}, Status: status}
	}
	return &RequestValidationError{
		Errors: []FieldError{invalidError(Location{}, err.Error(), nil)},
		Status: status,
	}
}

// ConfigurationError is returned when a request type cannot be compiled
// into a resolution plan. Registration panics with it.
type ConfigurationError struct {
	Type   reflect.Type
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("bind: %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("bind: %s.%s: %s", e.Type, e.Field, e.Reason)
}

func configErrorf(t reflect.Type, field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Type: t, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// AmbientStateError is returned when a system value is requested but the
// per-request state it lives in is unavailable. It maps to 500.
type AmbientStateError struct {
	Field string
	Err   error
}

func (e *AmbientStateError) Error() string {
	return fmt.Sprintf("bind: %s: %v", e.Field, e.Err)
}

func (e *AmbientStateError) Unwrap() error { return e.Err }

// StatusCode returns http.StatusInternalServerError.
func (e *AmbientStateError) StatusCode() int { return http.StatusInternalServerError }

// ProblemDetail is an RFC 9457 problem details response.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string       `json:"type,omitempty"`
	Title    string       `json:"title,omitempty"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }

// HTTPError is an error with an HTTP status code.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	if errors.Is(err, ErrBodyTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// problemFor converts any error into the problem document written to clients.
func problemFor(err error) *ProblemDetail {
	var rve *RequestValidationError
	if errors.As(err, &rve) {
		return rve.Problem()
	}
	var pd *ProblemDetail
	if errors.As(err, &pd) {
		return pd
	}
	status := ErrorStatus(err)
	detail := err.Error()
	if status >= http.StatusInternalServerError {
		var he *HTTPError
		if !errors.As(err, &he) {
			detail = http.StatusText(status)
		}
	}
	return &ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}
