// Package certwatch reloads the server TLS certificate when the files
// on disk change, so certificates renewed by an external tool (for
// example an ACME client) are picked up without a restart.
//
// A Watcher loads the key pair once at construction and then watches
// the containing directories with fsnotify. GetCertificate plugs into
// tls.Config and always returns the most recently loaded certificate.
package certwatch
