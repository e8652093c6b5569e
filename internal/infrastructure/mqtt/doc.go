// Package mqtt implements the pub/sub broker client: one physical connection
// whose inbound messages are multiplexed to per-topic one-shot waiters, with
// every bounded operation (connect, publish, subscribe) raced against its
// configured timeout.
//
// The waiter registry replaces listener bookkeeping with channels: a waiter
// is registered by WaitForMessage, receives at most one payload, and is
// removed exactly once, when it fires or when its timeout elapses. A topic
// key disappears from the registry the instant its waiter list empties, so
// repeated waits on the same topic cannot grow the registry.
package mqtt
