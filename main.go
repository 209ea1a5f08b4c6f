package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/usktea/lunch-indexer/cache"
	_ "github.com/usktea/lunch-indexer/docs"
	"github.com/usktea/lunch-indexer/enrich"
	"github.com/usktea/lunch-indexer/geocode"
	"github.com/usktea/lunch-indexer/index"
	"github.com/usktea/lunch-indexer/repl"
)

func newGeocoder(cfg GeocodeConfig, manager *cache.Manager) geocode.Geocoder {
	var retry geocode.RetryPolicy = geocode.NoRetry{}
	if cfg.RetryAttempts > 0 {
		retry = geocode.ExponentialRetry{MaxAttempts: cfg.RetryAttempts + 1}
	}
	client := geocode.NewClient(geocode.ClientConfig{
		BaseURL: cfg.BaseURL,
		KeyID:   cfg.KeyID,
		Key:     cfg.Key,
		Timeout: cfg.Timeout,
	}, retry)
	breaker := geocode.NewBreakerGeocoder(client, geocode.BreakerConfig{
		Name:                "naver-geocode",
		ConsecutiveFailures: cfg.BreakerFailures,
		OpenTimeout:         cfg.BreakerTimeout,
	})
	return geocode.NewCachedGeocoder(breaker, manager.Geocodes, cfg.CacheTTL)
}

func newReplicator(cfg *Config, handler *Handler, manager *cache.Manager) (*repl.Replicator, error) {
	opts := []repl.Option{repl.WithCursorStore(repl.NewRedisCursorStore(manager.Cursors))}
	if cfg.Replication.DeadLetter {
		opts = append(opts, repl.WithDeadLetters(repl.NewRedisDeadLetters(manager.DeadLetters)))
	}
	return repl.NewReplicator(repl.Config{
		ConnectionString:      cfg.Replication.DSN,
		SlotName:              cfg.Replication.Slot,
		CreateSlot:            cfg.Replication.CreateSlot,
		TemporarySlot:         cfg.Replication.TemporarySlot,
		Tables:                cfg.ReplicationTables(),
		KeyColumn:             "management_number",
		PollInterval:          cfg.Replication.PollInterval,
		StandbyMessageTimeout: cfg.Replication.StandbyTimeout,
		AdvanceOnFailure:      cfg.Replication.AdvanceOnFailure,
	}, handler.HandleBatch, opts...)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := index.NewDbClient(cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if cfg.Postgres.Migrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatal(err)
		}
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("invalid redis url: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	manager := cache.NewManager(rdb, cfg.Replication.DeadLetterLimit)

	// write side
	indexer := enrich.NewIndexer(newGeocoder(cfg.Geocode, manager), db, enrich.Config{
		Concurrency:    cfg.Geocode.Concurrency,
		GeocodeTimeout: cfg.Geocode.Timeout,
		UpsertTimeout:  cfg.Server.UpsertTimeout,
	})
	handler := NewHandler(indexer, cfg.Replication.Schema, cfg.Replication.Table)
	replicator, err := newReplicator(cfg, handler, manager)
	if err != nil {
		log.Fatal(err)
	}

	// read side
	engine := index.NewEngine(db, index.RequestSettings{Timeout: cfg.Server.RequestTimeout})
	api := NewAPI(engine, map[string]HealthCheck{
		"postgres": db.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}, replicator.TimeSinceLastMsg, cfg.Server.MaxReplicationLag)
	app := NewApp(api, log.IsLevelEnabled(log.DebugLevel))

	sup := newSupervisor(cfg.Supervisor)
	sup.Add(replicator)
	sup.Add(NewFiberService(app, cfg.Server.Listen, cfg.Supervisor.ShutdownTimeout))

	log.WithFields(log.Fields{
		"listen": cfg.Server.Listen,
		"slot":   cfg.Replication.Slot,
		"table":  cfg.Replication.Schema + "." + cfg.Replication.Table,
	}).Info("lunch indexer started")

	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("supervisor stopped: %v", err)
	}
	log.Info("lunch indexer stopped")
}
