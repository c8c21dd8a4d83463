// Package command provides the CLI command definitions for
// korrosync-cli, the offline administration tool. Commands open the
// data directory directly, so they must run while the server is
// stopped.
package command
