package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog"

	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// DisqueWaiter fetches events with GETJOB and acknowledges them with ACKJOB.
type DisqueWaiter struct {
	pool    *redis.Pool
	timeout time.Duration
	log     zerolog.Logger
}

// NewDisque connects lazily to a Disque node at addr.
func NewDisque(addr string, opts Options) *DisqueWaiter {
	return &DisqueWaiter{
		pool:    newPool(addr, opts),
		timeout: opts.PollTimeout,
		log:     opts.Logger.With().Str("component", "queue").Str("backend", "disque").Logger(),
	}
}

// Ping checks the connection.
func (d *DisqueWaiter) Ping(ctx context.Context) error { return Ping(ctx, d.pool) }

// Wait issues GETJOB TIMEOUT <ms> COUNT <n> FROM <queue>.
//
// Every fetched job is acknowledged, including bodies that fail to decode;
// those are logged and dropped.
func (d *DisqueWaiter) Wait(ctx context.Context, queue string, count int) ([]types.QueueEvent, error) {
	conn, err := d.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue: connect: %w", err)
	}
	defer conn.Close()

	reply, err := redis.Values(redis.DoContext(conn, ctx, "GETJOB",
		"TIMEOUT", d.timeout.Milliseconds(),
		"COUNT", count,
		"FROM", queue))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: GETJOB %s: %w", queue, err)
	}

	events := make([]types.QueueEvent, 0, len(reply))
	ids := make([]any, 0, len(reply))
	for _, item := range reply {
		fields, err := redis.Values(item, nil)
		if err != nil || len(fields) < 3 {
			d.log.Warn().Err(err).Msg("unexpected GETJOB entry")
			continue
		}
		id, _ := redis.String(fields[1], nil)
		body, _ := redis.Bytes(fields[2], nil)
		if id != "" {
			ids = append(ids, id)
		}

		ev, err := decode(body)
		if err != nil {
			d.log.Warn().Err(err).Str("job_id", id).Msg("dropping undecodable element")
			continue
		}
		events = append(events, ev)
	}

	if len(ids) > 0 {
		if _, err := redis.DoContext(conn, ctx, "ACKJOB", ids...); err != nil {
			d.log.Warn().Err(err).Int("count", len(ids)).Msg("ACKJOB failed")
		}
	}
	return events, nil
}

// Close releases pooled connections.
func (d *DisqueWaiter) Close() error { return d.pool.Close() }
