package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/calvinalkan/wordbank/internal/logger"
)

// DefaultRedisPrefix namespaces the Pub/Sub channel.
const DefaultRedisPrefix = "wordbank"

// Redis is a [Transport] over Redis Pub/Sub, for contexts that do not share
// a filesystem. Channel is "<prefix>:events".
type Redis struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string

	mu   sync.Mutex
	subs []*goredis.PubSub
	wg   sync.WaitGroup
}

// RedisOptions configures a [Redis] transport.
type RedisOptions struct {
	Addr   string
	Prefix string
	Logger *logger.Logger
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, errors.New("missing redis address")
	}

	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()

		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{
		log:     log.With("transport", "redis"),
		rdb:     rdb,
		channel: prefix + ":events",
	}, nil
}

// Channel returns the Pub/Sub channel name.
func (r *Redis) Channel() string {
	return r.channel
}

func (r *Redis) Publish(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	if err := r.rdb.Publish(ctx, r.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	return nil
}

func (r *Redis) StartForwarder(ctx context.Context, onMsg func(Message)) error {
	if onMsg == nil {
		return errors.New("onMsg callback required")
	}

	sub := r.rdb.Subscribe(ctx, r.channel)

	// Wait for the subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()

		return fmt.Errorf("redis subscribe: %w", err)
	}

	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()

	r.wg.Go(func() {
		defer func() { _ = sub.Close() }()

		ch := sub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}

				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					r.log.Warn("bad redis payload", "error", err)

					continue
				}

				onMsg(msg)
			}
		}
	})

	return nil
}

// Close ends every subscription and the client.
func (r *Redis) Close() error {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}

	r.wg.Wait()

	return r.rdb.Close()
}
