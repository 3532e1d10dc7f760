package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/bot"
	"github.com/Fuyukai/Jokusoramame-sub000/config"
	"github.com/Fuyukai/Jokusoramame-sub000/cooldown"
	"github.com/Fuyukai/Jokusoramame-sub000/database"
	"github.com/Fuyukai/Jokusoramame-sub000/events"
	"github.com/Fuyukai/Jokusoramame-sub000/gateway"
	"github.com/Fuyukai/Jokusoramame-sub000/infrastructure"
	"github.com/Fuyukai/Jokusoramame-sub000/infrastructure/observability"
	"github.com/Fuyukai/Jokusoramame-sub000/kv"
	"github.com/Fuyukai/Jokusoramame-sub000/repository"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds metric flushing and NATS draining at exit
const shutdownTimeout = 10 * time.Second

// Connect opens the database pool and the redis client in parallel
func Connect(ctx context.Context, cfg *config.Config) (*database.DB, *kv.Client, error) {
	var (
		db    *database.DB
		store *kv.Client
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		db, err = database.NewConnection(gctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		store, err = kv.NewClient(gctx, kv.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if db != nil {
			db.Close()
		}
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, err
	}
	return db, store, nil
}

// Reconcile repairs cache state that would otherwise block users forever
func Reconcile(ctx context.Context, store *kv.Client) error {
	if _, err := cooldown.NewAntiSpam(store).Reconcile(ctx); err != nil {
		return fmt.Errorf("failed to reconcile anti-spam keys: %w", err)
	}
	return nil
}

// Run initializes and starts the application, blocking until ctx is cancelled
func Run(ctx context.Context, cfg *config.Config) error {
	log.WithFields(log.Fields{
		"environment": cfg.Environment,
		"shards":      cfg.ShardCount,
		"dev":         cfg.DevMode,
	}).Info("Starting Jokusoramame")

	db, store, err := Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()
	log.Info("Database and redis connections established")

	if err := database.RunMigrationsWithURL(cfg.DatabaseURL); err != nil {
		return err
	}
	if err := Reconcile(ctx, store); err != nil {
		return err
	}

	metrics := observability.NewMetricsProvider(cfg.Metrics, cfg.Environment)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to flush metrics")
		}
	}()

	eventBus := events.NewBus()
	if cfg.NATS.URL != "" {
		natsClient, err := connectNATS(ctx, cfg.NATS)
		if err != nil {
			return err
		}
		defer natsClient.Close()
		eventBus.SetForwarder(infrastructure.NewNATSEventForwarder(natsClient, infrastructure.NewEventSubjectMapper()))
	}

	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	discord, err := gateway.NewDiscord(cfg.Token, cfg.ShardCount)
	if err != nil {
		return err
	}
	b := bot.New(bot.Deps{
		Config:  cfg,
		Client:  discord,
		UoW:     uowFactory,
		KV:      store,
		Bus:     eventBus,
		Metrics: metrics,
	}, discord)
	if err := b.Start(ctx); err != nil {
		return err
	}

	log.Info("Bot is running")
	<-ctx.Done()

	log.Info("Shutting down")
	if err := b.Close(); err != nil {
		log.WithError(err).Warn("Error while closing the bot")
	}
	return nil
}

func connectNATS(ctx context.Context, cfg config.NATSConfig) (*infrastructure.NATSClient, error) {
	client := infrastructure.NewNATSClient(cfg.URL)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, err
	}
	if err := client.EnsureStream(cfg.Stream, infrastructure.NewEventSubjectMapper().GetAllSubjects()); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
