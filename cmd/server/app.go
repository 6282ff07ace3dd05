package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/farm-marketplace/internal/config"
	"github.com/iliyamo/farm-marketplace/internal/database"
	"github.com/iliyamo/farm-marketplace/internal/queue"
	"github.com/iliyamo/farm-marketplace/internal/repository"
	"github.com/iliyamo/farm-marketplace/internal/service"
	"github.com/iliyamo/farm-marketplace/internal/utils"
)

// app holds the long-lived dependencies shared by the subcommands.
type app struct {
	db       *sql.DB
	accounts *service.AccountService
	rdb      *redis.Client
}

type bootstrapOpts struct {
	migrate bool
	redis   bool
}

// bootstrap opens the store and builds the account service.  Redis is
// optional; when it does not answer, caching is off and rate limiting
// falls back to in-process buckets.
func bootstrap(ctx context.Context, c config.Config, o bootstrapOpts) (*app, error) {
	db, dialect, err := database.Open(ctx, c.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if o.migrate {
		if err := database.Migrate(ctx, db, dialect); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	var events service.EventPublisher = service.NopPublisher{}
	if c.EventsEnabled {
		events = queue.NewPublisher(c.RabbitURL, c.EventsQueue, logger)
	}

	a := &app{
		db: db,
		accounts: service.NewAccountService(service.Options{
			Store:          repository.NewStore(db),
			Codec:          utils.NewTokenCodec(c.JWTSecret),
			Events:         events,
			Logger:         logger,
			AccessTTL:      c.AccessTTL(),
			BcryptCost:     c.BcryptCost,
			MinPasswordLen: c.MinPasswordLen,
			Districts:      c.Districts,
		}),
	}

	if o.redis && (c.RateLimit.Enabled || c.Cache.Enabled) {
		a.rdb = config.NewRedisClient(ctx, c.Redis)
		if a.rdb == nil {
			logger.Warn("redis unavailable, using in-process rate limiting and no response cache", "addr", c.Redis.Address())
		}
	}
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	errs = append(errs, a.db.Close())
	return errors.Join(errs...)
}
