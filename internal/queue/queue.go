// Package queue implements the blocking wait primitive the live reporter
// drains: it returns bounded batches of job results and progress events.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog"

	"github.com/ChuLiYu/murdock-reporter/internal/config"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// ErrUnknownBackend is returned by New for an unsupported queue.backend.
var ErrUnknownBackend = errors.New("queue: unknown backend")

// Waiter blocks for at most its poll timeout and returns up to count events
// in delivery order. An empty batch is not an error.
type Waiter interface {
	Wait(ctx context.Context, queue string, count int) ([]types.QueueEvent, error)
	Close() error
}

// Options tunes a waiter.
type Options struct {
	Password    string
	PollTimeout time.Duration
	Logger      zerolog.Logger
}

// New selects the backend configured in cfg.
func New(cfg config.QueueConfig, logger zerolog.Logger) (Waiter, error) {
	opts := Options{
		Password:    cfg.Password,
		PollTimeout: cfg.PollTimeout,
		Logger:      logger,
	}
	switch cfg.Backend {
	case config.BackendDisque:
		return NewDisque(cfg.Addr, opts), nil
	case config.BackendRedis:
		return NewRedis(cfg.Addr, opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// newPool builds a redigo pool; reads may block for the poll timeout.
func newPool(addr string, opts Options) *redis.Pool {
	addr = strings.TrimPrefix(addr, "disque://")
	addr = strings.TrimPrefix(addr, "redis://")
	return &redis.Pool{
		MaxIdle:     2,
		IdleTimeout: 4 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			dialOpts := []redis.DialOption{
				redis.DialConnectTimeout(5 * time.Second),
				redis.DialReadTimeout(opts.PollTimeout + 5*time.Second),
				redis.DialWriteTimeout(5 * time.Second),
			}
			if opts.Password != "" {
				dialOpts = append(dialOpts, redis.DialPassword(opts.Password))
			}
			return redis.DialContext(ctx, "tcp", addr, dialOpts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// Ping checks that the queue is reachable.
func Ping(ctx context.Context, pool *redis.Pool) error {
	conn, err := pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("queue: connect: %w", err)
	}
	defer conn.Close()
	if _, err := redis.DoContext(conn, ctx, "PING"); err != nil {
		return fmt.Errorf("queue: ping: %w", err)
	}
	return nil
}

// decode parses one queue element; the caller decides what to do on error.
func decode(body []byte) (types.QueueEvent, error) {
	var ev types.QueueEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return types.QueueEvent{}, fmt.Errorf("queue: decode element: %w", err)
	}
	return ev, nil
}
