package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	migrate "github.com/golang-migrate/migrate/v4"

	"github.com/noah-isme/storefront-api/internal/app"
	"github.com/noah-isme/storefront-api/internal/config"
	"github.com/noah-isme/storefront-api/internal/db"
)

const usage = `usage: migrate <command>

commands:
  up            apply all pending migrations
  down [n]      roll back n migrations (default 1)
  version       print the current schema version
  force <v>     mark version v as applied without running it`

func main() {
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.MustLoad()
	logger := app.Logger(cfg, "migrate")

	m, err := db.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("init migrator")
	}
	defer m.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = m.Up()
	case "down":
		steps := 1
		if flag.NArg() > 1 {
			if steps, err = strconv.Atoi(flag.Arg(1)); err != nil || steps < 1 {
				logger.Fatal().Str("steps", flag.Arg(1)).Msg("down expects a positive step count")
			}
		}
		err = m.Steps(-steps)
	case "version":
		version, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return
		}
		if verr != nil {
			logger.Fatal().Err(verr).Msg("read version")
		}
		fmt.Printf("version %d (dirty=%t)\n", version, dirty)
		return
	case "force":
		if flag.NArg() < 2 {
			flag.Usage()
			os.Exit(2)
		}
		v, perr := strconv.Atoi(flag.Arg(1))
		if perr != nil {
			logger.Fatal().Err(perr).Msg("parse version")
		}
		err = m.Force(v)
	default:
		logger.Fatal().Str("command", cmd).Msg("unknown command")
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Msg("migrate")
	}
	logger.Info().Str("command", flag.Arg(0)).Msg("migrate done")
}
