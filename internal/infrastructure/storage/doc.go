// Package storage implements the object-storage client: a thin, lifecycle-
// managed wrapper over an S3-compatible API used by smoke-test steps to stage
// fixtures and verify artifacts written by the system under test.
package storage
