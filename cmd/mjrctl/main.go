// Command mjrctl is the offline companion of mjrd: it hashes configuration
// files, replays stored games and simulates seasons.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/okian/mjrating/pkg/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "mjrctl",
		Usage: "inspect and replay league ratings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				EnvVars: []string{"MJR_LOG_LEVEL"},
				Usage:   "debug, info, warn or error",
			},
		},
		Before: func(c *cli.Context) error {
			return logger.InitWithOptions(logger.Options{
				Level:  c.String("log-level"),
				Output: c.App.ErrWriter,
			})
		},
		Commands: []*cli.Command{
			hashCommand(),
			replayCommand(),
			simulateCommand(),
		},
	}
}
