package storage

import "github.com/probeworks/smokecore/internal/serr"

// Domain is the structured-error domain for object-storage failures.
const Domain = "storage"

// DomainValidation is the domain for input/config validation failures.
const DomainValidation = "validation"

// Structured codes raised by the object-storage client.
const (
	CodeMissingBucket    = "missing_bucket"
	CodeEmptyKey         = "empty_key"
	CodeConnectionFailed = "connection_failed"
	CodeOperationFailed  = "operation_failed"
)

// component is the discriminator placed in every error's details.
const component = "object-store-client"

// errMissingBucket reports an init attempt without bucket or region.
func errMissingBucket(name string) *serr.Error {
	return serr.New(DomainValidation, CodeMissingBucket).
		WithDetail("component", component).
		WithDetail("client", name)
}

// errEmptyKey reports an operation on an empty object key.
func errEmptyKey(name string) *serr.Error {
	return serr.New(DomainValidation, CodeEmptyKey).
		WithDetail("component", component).
		WithDetail("client", name)
}

// errConnection wraps a storage endpoint connection failure.
func errConnection(bucket string, cause error) *serr.Error {
	return serr.New(Domain, CodeConnectionFailed).
		WithRetryable(true).
		WithDetail("component", component).
		WithDetail("bucket", bucket).
		WithCause(cause)
}

// errOperation wraps a failed storage operation.
func errOperation(op, bucket, key string, cause error) *serr.Error {
	return serr.New(Domain, CodeOperationFailed).
		WithDetail("component", component).
		WithDetail("operation", op).
		WithDetail("bucket", bucket).
		WithDetail("key", key).
		WithCause(cause)
}
