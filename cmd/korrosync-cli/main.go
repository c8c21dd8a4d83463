// Package main provides the entry point for korrosync-cli.
//
// korrosync-cli is the offline management tool for a korrosync data
// directory: account administration, database statistics, and backups.
// The server must be stopped while the tool runs, since the data
// directory is locked by a single process at a time.
package main

import (
	"fmt"
	"os"

	"github.com/szaffarano/korrosync/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
