// Command sellersync runs one-shot sync and token chores against the same
// database the server uses.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"SellerHub/pkg/app"
	"SellerHub/pkg/config"
	"SellerHub/pkg/logger"
	"SellerHub/pkg/services"

	"github.com/urfave/cli/v2"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCLI().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:    "sellersync",
		Usage:   "sync MercadoLibre conversations and manage the seller token",
		Version: version,
		Before: func(c *cli.Context) error {
			if err := config.Load(); err != nil {
				return err
			}
			logger.Setup(config.AppEnv, config.LogLevel)
			return nil
		},
		Commands: []*cli.Command{
			syncCommand(),
			syncPackCommand(),
			tokenCommand(),
		},
	}
}

// withApp builds the app for one command and closes it afterwards.
func withApp(fn func(c *cli.Context, a *app.App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		a, err := app.Build(c.Context)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(c, a)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "sync every conversation with orders in the lookback window",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Usage: "lookback window in `DAYS`", Value: 0},
			&cli.IntFlag{Name: "max", Usage: "stop after `N` orders", Value: 0},
		},
		Action: withApp(func(c *cli.Context, a *app.App) error {
			sum, err := a.Sync.SyncRecent(c.Context, services.SyncOptions{
				Days:      c.Int("days"),
				MaxOrders: c.Int("max"),
			})
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, sum)
		}),
	}
}

func syncPackCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync-pack",
		Usage: "sync a single conversation",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pack", Usage: "pack `ID`", Required: true},
		},
		Action: withApp(func(c *cli.Context, a *app.App) error {
			res, err := a.Sync.SyncConversation(c.Context, c.String("pack"), services.SyncHint{})
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, res)
		}),
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "inspect or refresh the MercadoLibre token",
		Subcommands: []*cli.Command{
			{
				Name:  "status",
				Usage: "print expiry and refresh state",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					if a.Tokens == nil {
						return services.ErrNotConfigured
					}
					return printJSON(c.App.Writer, a.Tokens.Status())
				}),
			},
			{
				Name:  "refresh",
				Usage: "refresh now and store the rotated pair",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					if a.Tokens == nil {
						return services.ErrNotConfigured
					}
					if _, err := a.Tokens.Refresh(c.Context); err != nil {
						return err
					}
					return printJSON(c.App.Writer, a.Tokens.Status())
				}),
			},
		},
	}
}
