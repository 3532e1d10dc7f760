package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Fuyukai/Jokusoramame-sub000/cmd"
	"github.com/Fuyukai/Jokusoramame-sub000/config"
	"github.com/Fuyukai/Jokusoramame-sub000/database"
	"github.com/Fuyukai/Jokusoramame-sub000/logging"
	"github.com/Fuyukai/Jokusoramame-sub000/sandbox"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const usage = `usage: jokusoramame [-c config.yml] <command>

commands:
  run                     start the bot (default)
  migrate up              apply pending migrations
  migrate down [n]        roll back n migrations (default 1)
  migrate status          print the current migration version
  reconcile               repair redis keys left without an expiry
`

func main() {
	sandbox.Main()

	flags := pflag.NewFlagSet("jokusoramame", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to the YAML config (default $JOKU_CONFIG or config.yml)")
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	args := flags.Args()

	// migrations only need a database URL, not a full config
	if len(args) > 0 && args[0] == "migrate" {
		if err := handleMigrationCommand(args[1:]); err != nil {
			log.Fatalf("Migration error: %v", err)
		}
		return
	}

	if *configPath != "" {
		_ = os.Setenv("JOKU_CONFIG", *configPath)
	}
	cfg := config.Get()

	closer, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("Logging setup failed: %v", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := "run"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "run":
		err = cmd.Run(ctx, cfg)
	case "reconcile":
		err = reconcile(ctx, cfg)
	default:
		flags.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Error("Application error")
		closer.Close()
		os.Exit(1)
	}
}

func reconcile(ctx context.Context, cfg *config.Config) error {
	db, store, err := cmd.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()
	return cmd.Reconcile(ctx, store)
}

func handleMigrationCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: jokusoramame migrate [up|down|status] [args...]")
	}

	url := database.MigrationURLFromEnv()
	if url == "" {
		cfg, err := config.Load(os.Getenv("JOKU_CONFIG"))
		if err != nil {
			return err
		}
		url = cfg.DatabaseURL
	}

	switch args[0] {
	case "up":
		return database.MigrateUp(url)
	case "down":
		steps := "1"
		if len(args) > 1 {
			steps = args[1]
		}
		return database.MigrateDown(url, steps)
	case "status":
		return database.MigrateStatus(url)
	default:
		return fmt.Errorf("unknown migration command: %s", args[0])
	}
}
