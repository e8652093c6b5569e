// Package world holds state shared between the steps of one smoke-test
// scenario.
//
// A World is a typed key→value store: a step records what it observed (a
// message payload, an ack, an upload key) and a later step asserts on it.
// Reset clears everything between scenarios so state never leaks across runs.
package world
