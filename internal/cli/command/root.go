package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/szaffarano/korrosync/internal/cli/output"
	"github.com/szaffarano/korrosync/internal/infra/buildinfo"
	"github.com/szaffarano/korrosync/internal/server/config"
	"github.com/szaffarano/korrosync/internal/storage"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "korrosync-cli",
		Usage:   "korrosync administration tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			UserCommand(),
			DBCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Data directory of the korrosync server",
			EnvVars: []string{"KORROSYNC_STORAGE_DATA_DIR"},
			Value:   config.DefaultDataDir,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable verbose output",
		},
	}
}

// openStore opens the data directory. The engine locks it, so the
// server must not be running.
func openStore(c *cli.Context) (*storage.BadgerStore, error) {
	level := slog.LevelWarn
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := storage.DefaultConfig(c.String("data-dir"))
	cfg.Logger = logger

	store, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open data dir %s: %w", cfg.Dir, err)
	}
	return store, nil
}

// formatter returns the output formatter selected by the --output flag.
func formatter(c *cli.Context) output.Formatter {
	return output.NewFormatter(output.Format(c.String("output")))
}

// readSecret reads a password, preferring the flag and falling back to
// a stdin prompt.
func readSecret(c *cli.Context, flagName, prompt string) (string, error) {
	if secret := c.String(flagName); secret != "" {
		return secret, nil
	}

	fmt.Fprint(os.Stderr, prompt)
	var secret string
	if _, err := fmt.Fscanln(os.Stdin, &secret); err != nil {
		if err == io.EOF {
			return "", fmt.Errorf("no password provided")
		}
		return "", fmt.Errorf("read password: %w", err)
	}
	return secret, nil
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
