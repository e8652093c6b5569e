// Package retry wraps asynchronous operations with bounded retries and a
// configurable delay curve.
//
// A Policy is consumed once per call and never persisted. When every attempt
// fails, the caller receives a single structured "exhausted" error whose
// cause is the last underlying failure.
package retry
