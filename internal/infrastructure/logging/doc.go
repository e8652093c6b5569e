// Package logging provides structured logging for smokecore.
//
// It wraps log/slog with level parsing, configurable output format, and
// default service attributes. Clients receive a *Logger (or a narrower
// interface of it) and emit warn/error diagnostics only; smoke-test
// assertions never depend on log output.
package logging
