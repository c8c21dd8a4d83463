// Package config defines the korrosync-server configuration structure,
// its defaults, and validation.
package config
