package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/travigo/punctuality/pkg/calendar"
	"github.com/travigo/punctuality/pkg/config"
	"github.com/travigo/punctuality/pkg/digitraffic"
	"github.com/travigo/punctuality/pkg/fetcher"
	"github.com/travigo/punctuality/pkg/kvstore"
	"github.com/travigo/punctuality/pkg/planner"
	"github.com/travigo/punctuality/pkg/recordcache"
	"github.com/travigo/punctuality/pkg/redis_client"
	"github.com/travigo/punctuality/pkg/routesync"
)

// Version is written to the cache on startup, a change clears the cache.
// Overridden at build time with -ldflags "-X".
var Version = "v0.3"

const redisNamespace = "punctuality:"

// Application holds the wired components shared by the CLI and the web API
type Application struct {
	Config   *config.Config
	Calendar *calendar.Calendar

	Store        kvstore.Store
	Cache        *recordcache.Cache
	Planner      *planner.Planner
	Client       *digitraffic.Client
	Orchestrator *fetcher.Orchestrator
	Refresher    *routesync.Refresher
}

func OpenStore(cfg *config.Config) (kvstore.Store, error) {
	switch cfg.Store {
	case config.StoreRedis:
		if err := redis_client.Connect(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return kvstore.NewRedisStore(redis_client.Client, redisNamespace), nil
	default:
		return kvstore.OpenSQLite(cfg.SQLitePath)
	}
}

// Setup opens the configured store and wires everything on top of it
func Setup(ctx context.Context, cfg *config.Config) (*Application, error) {
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	application, err := New(ctx, cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	return application, nil
}

// New wires the components over an open store and checks the cache version
func New(ctx context.Context, cfg *config.Config, store kvstore.Store) (*Application, error) {
	cal, err := calendar.New(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	return NewWithCalendar(ctx, cfg, store, cal)
}

func NewWithCalendar(ctx context.Context, cfg *config.Config, store kvstore.Store, cal *calendar.Calendar) (*Application, error) {
	client := digitraffic.NewClient()
	client.BaseURL = cfg.APIBaseURL
	client.GraphQLURL = cfg.GraphQLURL
	client.Timeout = cfg.RequestTimeout

	cache := recordcache.New(store, cal)

	if _, err := cache.EnsureVersion(ctx, Version); err != nil {
		return nil, err
	}

	acquisitionPlanner := planner.New(cache)

	orchestrator := fetcher.New(acquisitionPlanner, client, cfg.Route)
	orchestrator.MaxAPICalls = cfg.MaxAPICalls

	log.Debug().
		Str("store", cfg.Store).
		Str("from", cfg.Route.From).
		Str("to", cfg.Route.To).
		Int("maxAPICalls", cfg.MaxAPICalls).
		Msg("Application ready")

	return &Application{
		Config:       cfg,
		Calendar:     cal,
		Store:        store,
		Cache:        cache,
		Planner:      acquisitionPlanner,
		Client:       client,
		Orchestrator: orchestrator,
		Refresher:    routesync.New(cache, client, cfg.Route),
	}, nil
}

func (a *Application) Close() error {
	return a.Store.Close()
}
