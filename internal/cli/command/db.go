package command

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/szaffarano/korrosync/internal/cli/output"
)

// DBCommand returns the db subcommand group.
func DBCommand() *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Inspect and back up the data directory",
		Subcommands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "Show storage statistics",
				Action: dbInfo,
			},
			{
				Name:      "backup",
				Usage:     "Write a consistent snapshot to a file",
				ArgsUsage: "OUTPUT_FILE",
				Action:    dbBackup,
			},
		},
	}
}

func dbInfo(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	info := struct {
		DataDir         string `json:"data_dir"`
		Users           uint64 `json:"users"`
		ProgressRecords uint64 `json:"progress_records"`
		LSMSize         uint64 `json:"lsm_size_bytes"`
		ValueLogSize    uint64 `json:"value_log_size_bytes"`
	}{
		DataDir:         c.String("data-dir"),
		Users:           stats.Users,
		ProgressRecords: stats.ProgressRecords,
		LSMSize:         stats.LSMSize,
		ValueLogSize:    stats.ValueLogSize,
	}

	return formatter(c).Format(os.Stdout, info)
}

func dbBackup(c *cli.Context) error {
	target := c.Args().First()
	if target == "" {
		return fmt.Errorf("OUTPUT_FILE argument is required")
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}

	spinner := output.NewSpinner(os.Stderr, "backing up "+c.String("data-dir"))
	spinner.Start()

	if err := store.Backup(context.Background(), f); err != nil {
		spinner.Fail("backup failed")
		f.Close()
		os.Remove(target)
		return err
	}

	if err := f.Close(); err != nil {
		spinner.Fail("backup failed")
		return fmt.Errorf("close backup file: %w", err)
	}

	spinner.Success("backup written to " + target)
	return nil
}
