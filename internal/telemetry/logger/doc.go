// Package logger provides structured logging for korrosync.
//
// It wraps log/slog with JSON output by default, automatic redaction of
// credential-bearing attributes, and request ID propagation through
// context.
package logger
