// Package cache keeps hot read views in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"civicsync/models"

	"github.com/redis/go-redis/v9"
)

// Leaderboard caches rendered leaderboard pages. Entries are keyed under a
// version number; Invalidate bumps the version so every stale page is
// skipped at once and left to expire.
type Leaderboard struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewLeaderboard(rdb *redis.Client, ttl time.Duration) *Leaderboard {
	return &Leaderboard{rdb: rdb, prefix: "civicsync:leaderboard", ttl: ttl}
}

func (l *Leaderboard) versionKey() string { return l.prefix + ":version" }

func (l *Leaderboard) pageKey(ctx context.Context, userType models.UserType, limit int) (string, error) {
	version, err := l.rdb.Get(ctx, l.versionKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	kind := string(userType)
	if kind == "" {
		kind = "all"
	}
	return fmt.Sprintf("%s:v%d:%s:%d", l.prefix, version, kind, limit), nil
}

// Load returns the cached page or computes it with fetch and stores it.
// Cache errors fall through to fetch.
func (l *Leaderboard) Load(ctx context.Context, userType models.UserType, limit int, fetch func(context.Context) ([]models.LeaderboardEntry, error)) ([]models.LeaderboardEntry, error) {
	key, err := l.pageKey(ctx, userType, limit)
	if err != nil {
		return fetch(ctx)
	}
	if raw, err := l.rdb.Get(ctx, key).Bytes(); err == nil {
		var entries []models.LeaderboardEntry
		if json.Unmarshal(raw, &entries) == nil {
			return entries, nil
		}
	}

	entries, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(entries); err == nil {
		l.rdb.Set(ctx, key, payload, l.ttl)
	}
	return entries, nil
}

func (l *Leaderboard) Invalidate(ctx context.Context) error {
	return l.rdb.Incr(ctx, l.versionKey()).Err()
}
