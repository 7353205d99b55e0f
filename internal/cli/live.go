package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ChuLiYu/murdock-reporter/internal/live"
	"github.com/ChuLiYu/murdock-reporter/internal/metrics"
	"github.com/ChuLiYu/murdock-reporter/internal/publisher"
	"github.com/ChuLiYu/murdock-reporter/internal/queue"
	"github.com/ChuLiYu/murdock-reporter/internal/server"
)

// pinger 由可檢查連線的佇列後端實作
type pinger interface {
	Ping(ctx context.Context) error
}

func (a *app) buildLiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "live <queue> <uid> <token>",
		Short: "Drain the job queue and publish the run status",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLive(cmd, args[0], args[1], args[2])
		},
	}
}

func (a *app) runLive(cmd *cobra.Command, queueName, uid, token string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	cfg := a.cfg

	waiter, err := queue.New(cfg.Queue, a.log)
	if err != nil {
		return err
	}
	defer waiter.Close()

	if p, ok := waiter.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("queue %s unreachable: %w", cfg.Queue.Addr, err)
		}
	}

	pub, err := publisher.FromConfig(cfg.Status, uid, token, a.log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	if cfg.Metrics.Enabled {
		srv := server.New(server.Options{Addr: cfg.Metrics.Addr, Gatherer: reg, Logger: a.log})
		go func() {
			if err := srv.Run(ctx); err != nil {
				a.log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	reporter := live.New(waiter, pub, live.Options{
		Queue:       queueName,
		BatchSize:   cfg.Queue.BatchSize,
		PollTimeout: cfg.Queue.PollTimeout,
		OutputDir:   cfg.Output.Dir,
		HTTPRoot:    cfg.Output.HTTPRoot,
		FailureCap:  cfg.Status.FailureCap,
		MinInterval: cfg.Status.MinInterval,
		JournalPath: cfg.Output.Journal,
		Classifier:  a.classifier(),
		Metrics:     collector,
		Logger:      a.log,
	})

	err = reporter.Run(ctx)
	if errors.Is(err, context.Canceled) {
		a.log.Warn().Str("session", reporter.Session()).Msg("interrupted before the run finished")
		return nil
	}
	return err
}
