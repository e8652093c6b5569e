package kafka

import "github.com/probeworks/smokecore/internal/serr"

// Domain is the structured-error domain for log-broker failures.
const Domain = "kafka"

// DomainValidation is the domain for input/config validation failures.
const DomainValidation = "validation"

// Structured codes raised by the log-broker client.
const (
	CodeMissingBrokers   = "missing_brokers"
	CodeMissingTopics    = "missing_topics"
	CodeEmptyTopic       = "empty_topic"
	CodeConnectionFailed = "connection_failed"
	CodeProducerFailed   = "producer_send_failed"
	CodeConsumerFailed   = "consumer_failed"
	CodeConsumeRunning   = "consume_already_running"
)

// Component discriminators placed in error details.
const (
	componentClient   = "log-broker-client"
	componentProducer = "log-broker-producer"
	componentConsumer = "log-broker-consumer"
)

// errMissingBrokers reports an init attempt without broker addresses.
func errMissingBrokers(name string) *serr.Error {
	return serr.New(DomainValidation, CodeMissingBrokers).
		WithDetail("component", componentClient).
		WithDetail("client", name)
}

// errMissingTopics reports an init attempt without topics to subscribe.
func errMissingTopics(name string) *serr.Error {
	return serr.New(DomainValidation, CodeMissingTopics).
		WithDetail("component", componentConsumer).
		WithDetail("client", name)
}

// errEmptyTopic reports a publish to an empty topic name.
func errEmptyTopic(name string) *serr.Error {
	return serr.New(DomainValidation, CodeEmptyTopic).
		WithDetail("component", componentProducer).
		WithDetail("client", name)
}

// errConnection wraps a broker connection failure. Connection failures are
// retryable: the broker may simply not be up yet when a smoke run starts.
func errConnection(brokers []string, cause error) *serr.Error {
	return serr.New(Domain, CodeConnectionFailed).
		WithRetryable(true).
		WithDetail("component", componentClient).
		WithDetail("brokers", brokers).
		WithCause(cause)
}

// errProducer wraps a producer-side failure. The record is never retried
// automatically; retrying is the caller's responsibility.
func errProducer(topic string, cause error) *serr.Error {
	return serr.New(Domain, CodeProducerFailed).
		WithDetail("component", componentProducer).
		WithDetail("topic", topic).
		WithCause(cause)
}

// errAlreadyConsuming reports a second ConsumeMessages call while the durable
// consume loop is still running.
func errAlreadyConsuming(name string) *serr.Error {
	return serr.New(Domain, CodeConsumeRunning).
		WithDetail("component", componentConsumer).
		WithDetail("client", name)
}

// errConsumer wraps a consumer-side failure.
func errConsumer(groupID string, cause error) *serr.Error {
	return serr.New(Domain, CodeConsumerFailed).
		WithDetail("component", componentConsumer).
		WithDetail("group_id", groupID).
		WithCause(cause)
}
