// Package events fans issue change events out to realtime subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"civicsync/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannel = "civicsync:issues"

// Bus publishes issue events and hands out subscriptions. A subscription's
// channel is closed when ctx is done.
type Bus interface {
	Publish(ctx context.Context, event models.IssueEvent) error
	Subscribe(ctx context.Context) (<-chan models.IssueEvent, error)
}

// RedisBus uses Redis pub/sub so every API replica sees every event.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisBus(rdb *redis.Client, channel string, log *zap.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{rdb: rdb, channel: channel, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, event models.IssueEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan models.IssueEvent, error) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	out := make(chan models.IssueEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event models.IssueEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.log.Warn("dropping malformed issue event", zap.Error(err))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// LocalBus is an in-process Bus for single-instance and memory-store runs.
// Slow subscribers miss events rather than block publishers.
type LocalBus struct {
	mu   sync.Mutex
	subs map[chan models.IssueEvent]struct{}
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[chan models.IssueEvent]struct{})}
}

func (b *LocalBus) Publish(_ context.Context, event models.IssueEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context) (<-chan models.IssueEvent, error) {
	ch := make(chan models.IssueEvent, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}
