// Package serr provides the structured error type used at every failure
// boundary in smokecore.
//
// Every error carries a stable code, a domain, a severity, a retryable flag,
// and safe diagnostic details. Errors are immutable once returned to a caller
// and serialize to JSON without stack traces; a non-structured cause is
// reduced to its type name and message.
//
// Client packages define their own constructors on top of this type (see the
// errors.go file in each infrastructure package), forcing the component
// discriminator and domain while leaving code and retryability to the leaf
// error.
package serr
