package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"backend-forestguard/internal/alert"
	"backend-forestguard/internal/config"
	"backend-forestguard/internal/db"
	"backend-forestguard/internal/sampler"
	"backend-forestguard/internal/stream"
	"backend-forestguard/internal/tracking"
	"backend-forestguard/internal/workers"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, db.Querier, *redis.Client, <-chan os.Signal) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.Printf("postgres connection failed: %v", err)
		return
	}
	defer pg.Close()

	rdb := deps.connectRedis(cfg)
	if rdb != nil {
		defer rdb.Close()
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, signals); err != nil {
		log.Printf("agent exited with error: %v", err)
	}
}

// Run samples the configured worker's position until a signal arrives, the
// context ends, or location permission is denied.
func Run(ctx context.Context, cfg config.Config, q db.Querier, rdb *redis.Client, signals <-chan os.Signal) error {
	if cfg.AgentUserID == "" || cfg.AgentProjectID == "" {
		return errors.New("AGENT_USER_ID and AGENT_PROJECT_ID are required")
	}
	src, err := newSource(cfg)
	if err != nil {
		return err
	}

	hub := stream.NewHub(rdb)
	rec := sampler.Recorders{
		tracking.NewService(q, hub, cfg.Location()),
		workers.NewService(q),
	}
	s := sampler.New(src, rec, sampler.Config{
		Interval:           cfg.SampleInterval,
		UserID:             cfg.AgentUserID,
		ProjectID:          cfg.AgentProjectID,
		AlertOnUnavailable: cfg.AlertOnLocationUnavailable,
	}, alert.LogAlerter{})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Printf("agent sampling: user=%s project=%s interval=%s", cfg.AgentUserID, cfg.AgentProjectID, cfg.SampleInterval)
	return s.Run(ctx)
}

func newSource(cfg config.Config) (sampler.Source, error) {
	if cfg.AgentGPXPath != "" {
		src, err := sampler.OpenReplaySource(cfg.AgentGPXPath, true)
		if err != nil {
			return nil, errors.Wrap(err, "replay source")
		}
		return src, nil
	}
	return sampler.StaticSource{Latitude: cfg.DefaultLatitude, Longitude: cfg.DefaultLongitude}, nil
}
