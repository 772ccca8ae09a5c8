package cmd

import (
	"context"
	"fmt"

	"civicsync/cache"
	"civicsync/config"
	"civicsync/events"
	"civicsync/ledger"
	"civicsync/lifecycle"
	"civicsync/repository"
	"civicsync/repository/memstore"
	"civicsync/repository/mongostore"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app is the wired dependency graph behind both subcommands.
type app struct {
	cfg         config.Config
	log         *zap.Logger
	store       repository.Store
	redis       *redis.Client
	bus         events.Bus
	leaderboard *cache.Leaderboard
	rewards     lifecycle.RewardTable
	ledger      *ledger.Ledger
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	rewards, ranks, err := config.LoadRewards(cfg.RewardsFile)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		rewards: rewards,
		ledger:  ledger.New(ranks),
	}

	switch cfg.Store {
	case "memory":
		log.Warn("using in-memory store, data is lost on exit")
		a.store = memstore.New()
	default:
		client, db, err := config.ConnectDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		store := mongostore.New(client, db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		log.Info("MongoDB connection established", zap.String("database", cfg.MongoDatabase))
		a.store = store
	}

	if cfg.RedisAddress != "" {
		rdb, err := config.ConnectRedis(ctx, cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			a.Close(context.Background())
			return nil, err
		}
		log.Info("Redis connection established", zap.String("address", cfg.RedisAddress))
		a.redis = rdb
		a.bus = events.NewRedisBus(rdb, events.DefaultChannel, log)
		a.leaderboard = cache.NewLeaderboard(rdb, cfg.LeaderboardTTL)
	} else {
		log.Warn("REDIS_ADDRESS not set, events stay in-process and rate limiting is off")
		a.bus = events.NewLocalBus()
	}

	return a, nil
}

func (a *app) Close(ctx context.Context) {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("closing redis", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			a.log.Warn("closing store", zap.Error(err))
		}
	}
}
