// Package output provides output formatting for korrosync-cli: plain
// ASCII tables for humans, JSON for scripts, and a spinner for long
// operations.
package output
