// Package main provides the entry point for korrosync-server.
//
// The server is the korrosync sync service that provides:
//
//   - HTTP/HTTPS API compatible with KOReader progress sync clients
//   - Embedded transactional storage, no external database required
//   - Per-client rate limiting and credential verification
//   - Optional Prometheus metrics endpoint
//
// Usage:
//
//	korrosync-server [flags]
//	korrosync-server --config /path/to/config.yaml
//
// The server loads configuration, opens the data directory, and starts
// the HTTP listener.
package main
