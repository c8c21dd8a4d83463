// Package shutdown coordinates graceful termination. Components register
// hooks; on SIGINT or SIGTERM the hooks run in reverse registration
// order under a shared timeout, so the HTTP listener drains before the
// store closes.
package shutdown
