package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/mjrating/internal/adapters/repository"
	"github.com/okian/mjrating/internal/adapters/storage/sqlite"
	service "github.com/okian/mjrating/internal/app"
	"github.com/okian/mjrating/internal/domain/model"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
	"github.com/okian/mjrating/internal/gamegen"
)

const defaultDSN = "file:mjrating.db?_foreign_keys=on"

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "db",
		Value:   defaultDSN,
		EnvVars: []string{"MJR_DATABASE_DSN"},
		Usage:   "SQLite DSN",
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "rating configuration file (json, yaml or toml); defaults apply when empty",
	}
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{Name: "limit", Value: 20, Usage: "leaderboard rows to print"}
}

func hashCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash",
		Usage:     "print the full and short hash of configuration files",
		ArgsUsage: "FILE...",
		Flags:     []cli.Flag{&cli.IntFlag{Name: "short", Value: 8, Usage: "short hash length (8-12)"}},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("hash: at least one file is required")
			}
			n := c.Int("short")
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			for _, path := range c.Args().Slice() {
				cfg, err := ratingconfig.LoadFile(path)
				if err != nil {
					return err
				}
				full := ratingconfig.Hash(cfg)
				fmt.Fprintf(tw, "%s\t%s\t%s\n", ratingconfig.ShortHash(full, n), full, path)
			}
			return tw.Flush()
		},
	}
}

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "replay stored games under a configuration and print the leaderboard",
		Flags: []cli.Flag{dbFlag(), configFlag(), limitFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfiguration(c.String("config"))
			if err != nil {
				return err
			}
			db, err := sqlite.Open(c.Context, c.String("db"))
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return replay(c.Context, c.App.Writer, db, cfg, c.Int("limit"))
		},
	}
}

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "generate a synthetic season and rate it",
		Flags: []cli.Flag{
			configFlag(), limitFlag(),
			&cli.Uint64Flag{Name: "seed", Value: gamegen.DefaultConfig().Seed, Usage: "generator seed"},
			&cli.IntFlag{Name: "players", Value: gamegen.DefaultConfig().Players, Usage: "roster size"},
			&cli.IntFlag{Name: "games", Value: gamegen.DefaultConfig().Games, Usage: "games to generate"},
			&cli.TimestampFlag{Name: "start", Layout: ratingconfig.DateLayout, Usage: "date of the first game"},
			&cli.StringFlag{Name: "store", Usage: "also write the season to this SQLite DSN"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfiguration(c.String("config"))
			if err != nil {
				return err
			}
			gen := gamegen.DefaultConfig()
			gen.Seed = c.Uint64("seed")
			gen.Players = c.Int("players")
			gen.Games = c.Int("games")
			if ts := c.Timestamp("start"); ts != nil {
				gen.Start = ts.UTC().Add(19 * time.Hour)
			}
			season, err := gamegen.Generate(gen)
			if err != nil {
				return err
			}

			if dsn := c.String("store"); dsn != "" {
				if err := store(c.Context, dsn, season); err != nil {
					return err
				}
				fmt.Fprintf(c.App.ErrWriter, "stored %d games in %s\n", len(season.Games), dsn)
			}
			src := service.NewMemorySource(season.Games, season.Hands)
			return replay(c.Context, c.App.Writer, src, cfg, c.Int("limit"))
		},
	}
}

func loadConfiguration(path string) (ratingconfig.Configuration, error) {
	if path == "" {
		return ratingconfig.Default(), nil
	}
	return ratingconfig.LoadFile(path)
}

func store(ctx context.Context, dsn string, season gamegen.Season) error {
	db, err := sqlite.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	byGame := make(map[string][]model.HandEvent, len(season.Games))
	for _, h := range season.Hands {
		byGame[h.GameID] = append(byGame[h.GameID], h)
	}
	for _, g := range season.Games {
		if err := db.AddGame(ctx, g, byGame[g.GameID]...); err != nil {
			return err
		}
	}
	return nil
}

func replay(ctx context.Context, w io.Writer, src service.GameSource, cfg ratingconfig.Configuration, limit int) error {
	svc := service.New(src, service.NewMemoryConfigStore(), repository.NewTreapStore())
	hash, err := svc.RegisterConfiguration(ctx, cfg)
	if err != nil {
		return err
	}
	snap, err := svc.Recompute(ctx, hash, true)
	if err != nil {
		return err
	}
	rows, err := svc.Leaderboard(ctx, hash, limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "configuration %s  games %d  rated %d  eligible %d\n",
		snap.ShortHash, snap.GamesReplayed, len(snap.States), len(snap.Standings))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "rank\tplayer\trating\tmu\tsigma\tgames\tavg place\tavg +/-\t")
	for _, e := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.2f\t%d\t%.2f\t%.1f\t\n",
			e.Rank, e.PlayerID, e.DisplayRating, e.Mu, e.Sigma, e.GamesPlayed, e.AveragePlacement, e.AveragePlusMinus)
	}
	return tw.Flush()
}
