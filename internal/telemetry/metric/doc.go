// Package metric provides Prometheus metrics for korrosync.
//
// The server exposes request counters and latency histograms, gate
// rejection counters, and storage statistics gathered through a custom
// collector. Metrics are served at /metrics in Prometheus format.
package metric
