package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/regional-product-extractor/internal/browser"
	"github.com/maltedev/regional-product-extractor/internal/config"
	"github.com/maltedev/regional-product-extractor/internal/database"
	"github.com/maltedev/regional-product-extractor/internal/diagnostics"
	"github.com/maltedev/regional-product-extractor/internal/metrics"
	"github.com/maltedev/regional-product-extractor/internal/region"
	"github.com/maltedev/regional-product-extractor/internal/resolver"
	"github.com/maltedev/regional-product-extractor/internal/retry"
	"github.com/maltedev/regional-product-extractor/internal/scraper"
	"github.com/maltedev/regional-product-extractor/internal/session"
	"github.com/maltedev/regional-product-extractor/internal/sink"
	"github.com/maltedev/regional-product-extractor/internal/site"
)

// app holds the wired components shared by all commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	regions   *region.Table
	metrics   *metrics.Metrics
	snapshots *diagnostics.Store
	runtime   *browser.Runtime
	policy    retry.Policy
	service   *scraper.Service
	sink      sink.Sink
	db        *database.DB
	redis     *redis.Client
	relay     *database.Relay
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	var err error
	a.regions, err = region.Load(cfg.Regions.TableFile, cfg.Regions.DefaultCode)
	if err != nil {
		return nil, fmt.Errorf("failed to load regions: %w", err)
	}

	res, err := resolver.New(resolver.Options{
		Timeout:          cfg.Resolver.Timeout,
		UserAgent:        cfg.Resolver.UserAgent,
		ShortLinkDomains: cfg.Resolver.ShortLinkDomains,
		CacheSize:        cfg.Resolver.CacheSize,
	}, logger)
	if err != nil {
		return nil, err
	}

	a.snapshots, err = diagnostics.NewStore(cfg.Diagnostics.Dir, cfg.Browser.Screenshots, logger)
	if err != nil {
		return nil, err
	}

	a.runtime, err = browser.NewRuntime(&browser.Options{
		Headless:      cfg.Browser.Headless,
		ActionTimeout: cfg.Browser.ActionTimeout,
		ProxyServer:   cfg.Browser.ProxyServer,
	}, logger)
	if err != nil {
		return nil, err
	}

	a.policy = retry.Policy{
		MaxAttempts:    cfg.Extraction.MaxAttempts,
		Backoff:        cfg.Extraction.Backoff,
		AttemptTimeout: cfg.Extraction.AttemptTimeout,
	}
	orchestrator := retry.New(a.policy, a.snapshots, a.metrics, logger)

	a.service, err = scraper.NewService(scraper.Config{
		NavigationTimeout:      cfg.Extraction.NavigationTimeout,
		ReadyTimeout:           cfg.Extraction.ReadyTimeout,
		NegotiationStepTimeout: cfg.Extraction.NegotiationStepTimeout,
		ListingCap:             cfg.Extraction.ListingCap,
		HeuristicMaxLength:     cfg.Extraction.HeuristicMaxLength,
		DefaultDevice:          session.Device(cfg.Extraction.DefaultDevice),
	}, scraper.Deps{
		Resolver: res,
		Regions:  a.regions,
		Sites:    site.Default(),
		Launcher: a.runtime,
		Retry:    orchestrator,
		Metrics:  a.metrics,
	}, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	if err := a.connectSinks(ctx); err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

// connectSinks always logs records. With a database, records and their
// outbox events are stored and the relay publishes to Redis; with Redis
// alone, records go straight to the stream.
func (a *app) connectSinks(ctx context.Context) error {
	sinks := []sink.Sink{sink.NewLog(a.logger)}

	if a.cfg.RedisEnabled() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	if a.cfg.DatabaseEnabled() {
		db, err := database.New(ctx, database.Config{
			Host:     a.cfg.Database.Host,
			Port:     a.cfg.Database.Port,
			User:     a.cfg.Database.User,
			Password: a.cfg.Database.Password,
			Database: a.cfg.Database.DBName,
			SSLMode:  a.cfg.Database.SSLMode,
			MaxConns: a.cfg.Database.MaxConns,
		})
		if err != nil {
			return err
		}
		a.db = db
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, sink.NewPostgres(database.NewRecordRepository(db, a.cfg.Redis.Stream)))

		if a.redis != nil {
			a.relay = database.NewRelay(db, a.redis, a.logger, database.RelayConfig{
				OnPublishError: func() { a.metrics.IncSinkError("relay") },
			})
		}
	} else if a.redis != nil {
		sinks = append(sinks, sink.NewStream(a.redis, a.cfg.Redis.Stream))
	}

	a.sink = sink.NewMulti(a.metrics, a.logger, sinks...)
	return nil
}

// startRelay publishes outbox events until ctx ends. It is a no-op without
// both a database and Redis.
func (a *app) startRelay(ctx context.Context) {
	if a.relay == nil {
		return
	}
	go func() {
		if err := a.relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("relay stopped with error", "error", err)
		}
	}()
}

func (a *app) close() {
	if a.runtime != nil {
		if err := a.runtime.Close(); err != nil {
			a.logger.Warn("failed to stop browser runtime", "error", err)
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
