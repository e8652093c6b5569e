// Package kafka implements the log-broker client: a lifecycle-managed
// producer plus durable consumer-group consumer used by smoke-test steps to
// publish records and observe topic traffic.
//
// The client owns exactly one producer and at most one durable consumer group
// at a time. WaitForMessage never touches the durable consumer: it fabricates
// an ephemeral consumer group with a unique id, runs it for the duration of
// the call, and tears it down on every exit path. The ephemeral query is
// best-effort: internal failures are logged and reported as "no match", never
// as an error.
package kafka
