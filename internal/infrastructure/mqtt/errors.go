package mqtt

import "github.com/probeworks/smokecore/internal/serr"

// Domain is the structured-error domain for pub/sub broker failures.
const Domain = "mqtt"

// DomainValidation is the domain for input/config validation failures.
const DomainValidation = "validation"

// Structured codes raised by the pub/sub client.
const (
	CodeMissingURL         = "missing_url"
	CodeEmptyTopic         = "empty_topic"
	CodeConnectionFailed   = "connection_failed"
	CodeConnectTimeout     = "connect_timeout"
	CodePublishFailed      = "publish_failed"
	CodePublishTimeout     = "publish_timeout"
	CodeSubscribeFailed    = "subscribe_failed"
	CodeSubscribeTimeout   = "subscribe_timeout"
	CodeUnsubscribeFailed  = "unsubscribe_failed"
	CodeUnsubscribeTimeout = "unsubscribe_timeout"
)

// component is the discriminator placed in every error's details.
const component = "pubsub-client"

// errMissingURL reports an init attempt without a broker URL.
func errMissingURL(name string) *serr.Error {
	return serr.New(DomainValidation, CodeMissingURL).
		WithDetail("component", component).
		WithDetail("client", name)
}

// errEmptyTopic reports an operation on an empty topic or topic list.
func errEmptyTopic(name string) *serr.Error {
	return serr.New(DomainValidation, CodeEmptyTopic).
		WithDetail("component", component).
		WithDetail("client", name)
}

// errConnection wraps a broker connection failure. Retryable: the broker may
// not be reachable yet when a smoke run starts.
func errConnection(url string, cause error) *serr.Error {
	return serr.New(Domain, CodeConnectionFailed).
		WithRetryable(true).
		WithDetail("component", component).
		WithDetail("url", url).
		WithCause(cause)
}

// errTimeout reports an operation whose broker acknowledgment did not arrive
// within the configured window. code selects the operation-specific timeout
// code.
func errTimeout(code, topic string, timeoutMs int64) *serr.Error {
	e := serr.New(Domain, code).
		WithDetail("component", component).
		WithDetail("timeout_ms", timeoutMs)
	if topic != "" {
		e.WithDetail("topic", topic)
	}
	return e
}

// errOperation wraps a broker-reported failure for the given operation code.
func errOperation(code, topic string, cause error) *serr.Error {
	e := serr.New(Domain, code).
		WithDetail("component", component).
		WithCause(cause)
	if topic != "" {
		e.WithDetail("topic", topic)
	}
	return e
}
