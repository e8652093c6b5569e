package serr

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Severity classifies how serious a structured error is.
type Severity string

// Supported severities, from least to most serious.
const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
	SeverityFatal Severity = "fatal"
)

// Error is the root structured error type.
//
// It is created at failure boundaries and never mutated after being returned
// to a caller. The With* methods are intended for use at construction time
// only.
type Error struct {
	// Code is a stable, machine-readable identifier (e.g. "connection_failed").
	Code string

	// Domain names the subsystem the error originates from (e.g. "kafka").
	Domain string

	// Severity defaults to SeverityError.
	Severity Severity

	// Retryable reports whether retrying the failed operation may succeed.
	Retryable bool

	// Details holds safe diagnostic context. Credentials must never be
	// placed here.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error

	// Timestamp records when the error was created.
	Timestamp time.Time
}

// New creates a structured error with the given domain and code.
//
// Severity defaults to SeverityError and Retryable to false.
func New(domain, code string) *Error {
	return &Error{
		Code:      code,
		Domain:    domain,
		Severity:  SeverityError,
		Details:   make(map[string]any),
		Timestamp: time.Now().UTC(),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s/%s: %v", e.Domain, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s/%s", e.Domain, e.Code)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSeverity sets the severity and returns the error for chaining.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// WithRetryable sets the retryable flag and returns the error for chaining.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithDetail adds a single diagnostic detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithDetails merges the given details and returns the error for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// WithCause sets the underlying error and returns the error for chaining.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// serialized is the wire shape of a structured error.
type serialized struct {
	Code      string          `json:"code"`
	Domain    string          `json:"domain"`
	Severity  Severity        `json:"severity"`
	Retryable bool            `json:"retryable"`
	Details   map[string]any  `json:"details,omitempty"`
	Cause     json.RawMessage `json:"cause,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// serializedCause is the reduced form of a non-structured cause.
type serializedCause struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// MarshalJSON serializes the error without stack traces.
//
// A structured cause is serialized recursively; any other error is reduced
// to its dynamic type name and message.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := serialized{
		Code:      e.Code,
		Domain:    e.Domain,
		Severity:  e.Severity,
		Retryable: e.Retryable,
		Details:   e.Details,
		Timestamp: e.Timestamp,
	}

	if e.Cause != nil {
		var (
			raw []byte
			err error
		)
		if structured, ok := e.Cause.(*Error); ok {
			raw, err = structured.MarshalJSON()
		} else {
			raw, err = json.Marshal(serializedCause{
				Name:    fmt.Sprintf("%T", e.Cause),
				Message: e.Cause.Error(),
			})
		}
		if err != nil {
			return nil, err
		}
		out.Cause = raw
	}

	return json.Marshal(out)
}

// CodeOf returns the structured code of err, or "" if err is not structured.
func CodeOf(err error) string {
	if structured := asError(err); structured != nil {
		return structured.Code
	}
	return ""
}

// DomainOf returns the structured domain of err, or "" if err is not structured.
func DomainOf(err error) string {
	if structured := asError(err); structured != nil {
		return structured.Domain
	}
	return ""
}

// IsRetryable reports whether err is a structured error marked retryable.
func IsRetryable(err error) bool {
	if structured := asError(err); structured != nil {
		return structured.Retryable
	}
	return false
}

// HasCode reports whether err is a structured error with the given domain
// and code.
func HasCode(err error, domain, code string) bool {
	structured := asError(err)
	return structured != nil && structured.Domain == domain && structured.Code == code
}

// asError extracts the outermost *Error from err's chain.
func asError(err error) *Error {
	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}
	return nil
}
