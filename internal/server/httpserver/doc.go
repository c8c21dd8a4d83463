// Package httpserver provides the HTTP/HTTPS server for korrosync.
//
// It serves the KOReader sync protocol on the standard library mux:
// account registration, credential checks, and per-document reading
// progress. Every authenticated route passes through the gate middleware,
// which rate limits before it verifies credentials.
package httpserver
