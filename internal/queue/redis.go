package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog"

	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// RedisWaiter treats a Redis list as the queue: BLPOP for the first element,
// then non-blocking LPOP for the rest of the batch.
type RedisWaiter struct {
	pool    *redis.Pool
	timeout time.Duration
	log     zerolog.Logger
}

// NewRedis connects lazily to a Redis server at addr.
func NewRedis(addr string, opts Options) *RedisWaiter {
	return &RedisWaiter{
		pool:    newPool(addr, opts),
		timeout: opts.PollTimeout,
		log:     opts.Logger.With().Str("component", "queue").Str("backend", "redis").Logger(),
	}
}

// Ping checks the connection.
func (r *RedisWaiter) Ping(ctx context.Context) error { return Ping(ctx, r.pool) }

// Wait pops up to count elements from the list named queue.
func (r *RedisWaiter) Wait(ctx context.Context, queue string, count int) ([]types.QueueEvent, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue: connect: %w", err)
	}
	defer conn.Close()

	seconds := strconv.FormatFloat(r.timeout.Seconds(), 'f', -1, 64)
	first, err := redis.ByteSlices(redis.DoContext(conn, ctx, "BLPOP", queue, seconds))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: BLPOP %s: %w", queue, err)
	}
	if len(first) != 2 {
		return nil, fmt.Errorf("queue: BLPOP %s: unexpected reply of %d elements", queue, len(first))
	}

	bodies := [][]byte{first[1]}
	for len(bodies) < count {
		body, err := redis.Bytes(redis.DoContext(conn, ctx, "LPOP", queue))
		if errors.Is(err, redis.ErrNil) {
			break
		}
		if err != nil {
			r.log.Warn().Err(err).Msg("LPOP failed, returning partial batch")
			break
		}
		bodies = append(bodies, body)
	}

	events := make([]types.QueueEvent, 0, len(bodies))
	for _, body := range bodies {
		ev, err := decode(body)
		if err != nil {
			r.log.Warn().Err(err).Msg("dropping undecodable element")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Close releases pooled connections.
func (r *RedisWaiter) Close() error { return r.pool.Close() }
