package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "voicequeue:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "voicequeue",
		Usage: "priority job queue for voice note transcription, summarization and processing",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the scheduler and the HTTP control API",
				Flags:  []cli.Flag{envFileFlag()},
				Action: serveAction,
			},
			{
				Name:  "token",
				Usage: "print a signed development bearer token",
				Flags: []cli.Flag{
					envFileFlag(),
					&cli.StringFlag{
						Name:     "subject",
						Usage:    "principal the token identifies",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "token lifetime",
						Value: 24 * time.Hour,
					},
				},
				Action: tokenAction,
			},
		},
	}
}

func envFileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env-file",
		Usage: "optional .env file preloaded before reading the environment",
		Value: ".env",
	}
}
