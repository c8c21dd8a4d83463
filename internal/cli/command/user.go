package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/szaffarano/korrosync/internal/core/service"
	"github.com/szaffarano/korrosync/internal/telemetry/logger"
)

// UserCommand returns the user subcommand group.
func UserCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage accounts",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create an account",
				ArgsUsage: "USERNAME",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Password (prompted when omitted)",
					},
				},
				Action: userCreate,
			},
			{
				Name:   "list",
				Usage:  "List accounts",
				Action: userList,
			},
			{
				Name:      "remove",
				Usage:     "Remove an account and its reading progress",
				ArgsUsage: "USERNAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: userRemove,
			},
			{
				Name:      "reset-password",
				Usage:     "Reset an account's password",
				ArgsUsage: "USERNAME",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "New password (prompted when omitted)",
					},
				},
				Action: userResetPassword,
			},
		},
	}
}

func requireUsername(c *cli.Context) (string, error) {
	username := c.Args().First()
	if username == "" {
		return "", fmt.Errorf("USERNAME argument is required")
	}
	return username, nil
}

func userCreate(c *cli.Context) error {
	username, err := requireUsername(c)
	if err != nil {
		return err
	}

	password, err := readSecret(c, "password", "Password: ")
	if err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := service.NewUserService(store, logger.Slog(logger.Default()))
	resp, err := svc.Register(context.Background(), &service.RegisterRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return err
	}

	fmt.Printf("user %q created\n", resp.Username)
	return nil
}

func userList(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := service.NewUserService(store, logger.Slog(logger.Default()))
	users, err := svc.List(context.Background())
	if err != nil {
		return err
	}

	type row struct {
		Username     string    `json:"username"`
		LastActivity time.Time `json:"last_activity"`
	}
	rows := make([]row, 0, len(users))
	for _, u := range users {
		rows = append(rows, row{Username: u.Username, LastActivity: u.LastActivity})
	}

	return formatter(c).Format(os.Stdout, rows)
}

func userRemove(c *cli.Context) error {
	username, err := requireUsername(c)
	if err != nil {
		return err
	}

	if !c.Bool("force") {
		fmt.Printf("remove user %q and all of its reading progress? [y/N] ", username)
		var answer string
		fmt.Fscanln(os.Stdin, &answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("aborted")
			return nil
		}
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := service.NewUserService(store, logger.Slog(logger.Default()))
	if err := svc.Remove(context.Background(), username); err != nil {
		return err
	}

	fmt.Printf("user %q removed\n", username)
	return nil
}

func userResetPassword(c *cli.Context) error {
	username, err := requireUsername(c)
	if err != nil {
		return err
	}

	password, err := readSecret(c, "password", "New password: ")
	if err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := service.NewUserService(store, logger.Slog(logger.Default()))
	if err := svc.ResetPassword(context.Background(), username, password); err != nil {
		return err
	}

	fmt.Printf("password for %q reset\n", username)
	return nil
}
