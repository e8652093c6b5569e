package logstore

import "github.com/probeworks/smokecore/internal/serr"

// Domain is the structured-error domain for log-store failures.
const Domain = "logstore"

// DomainValidation is the domain for input/config validation failures.
const DomainValidation = "validation"

// Structured codes raised by the log-query client.
const (
	CodeMissingURL       = "missing_url"
	CodeEmptyQuery       = "empty_query"
	CodeConnectionFailed = "connection_failed"
	CodeQueryFailed      = "query_failed"
)

// component is the discriminator placed in every error's details.
const component = "log-store-client"

// errMissingURL reports an init attempt without a server URL.
func errMissingURL(name string) *serr.Error {
	return serr.New(DomainValidation, CodeMissingURL).
		WithDetail("component", component).
		WithDetail("client", name)
}

// errEmptyQuery reports a query call with an empty query string.
func errEmptyQuery(name string) *serr.Error {
	return serr.New(DomainValidation, CodeEmptyQuery).
		WithDetail("component", component).
		WithDetail("client", name)
}

// errConnection wraps a server connection failure.
func errConnection(url string, cause error) *serr.Error {
	return serr.New(Domain, CodeConnectionFailed).
		WithRetryable(true).
		WithDetail("component", component).
		WithDetail("url", url).
		WithCause(cause)
}

// errQuery wraps a failed query.
func errQuery(cause error) *serr.Error {
	return serr.New(Domain, CodeQueryFailed).
		WithDetail("component", component).
		WithCause(cause)
}
