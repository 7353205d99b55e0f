package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks the configuration and returns the first failure found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}

	switch cfg.Queue.Backend {
	case BackendDisque, BackendRedis:
	default:
		return fmt.Errorf("%w: queue.backend must be %q or %q, got %q",
			ErrInvalidConfig, BackendDisque, BackendRedis, cfg.Queue.Backend)
	}
	if cfg.Queue.Addr == "" {
		return fmt.Errorf("%w: queue.addr must not be empty", ErrInvalidConfig)
	}
	if cfg.Queue.BatchSize <= 0 {
		return fmt.Errorf("%w: queue.batch_size must be positive, got %d", ErrInvalidConfig, cfg.Queue.BatchSize)
	}
	if cfg.Queue.PollTimeout <= 0 {
		return fmt.Errorf("%w: queue.poll_timeout must be positive, got %s", ErrInvalidConfig, cfg.Queue.PollTimeout)
	}

	switch cfg.Status.Mode {
	case ModePut, ModeControl:
	default:
		return fmt.Errorf("%w: status.mode must be %q or %q, got %q",
			ErrInvalidConfig, ModePut, ModeControl, cfg.Status.Mode)
	}
	if cfg.Status.MinInterval <= 0 {
		return fmt.Errorf("%w: status.min_interval must be positive, got %s", ErrInvalidConfig, cfg.Status.MinInterval)
	}
	if cfg.Status.Timeout <= 0 {
		return fmt.Errorf("%w: status.timeout must be positive, got %s", ErrInvalidConfig, cfg.Status.Timeout)
	}
	if cfg.Status.FailureCap <= 0 {
		return fmt.Errorf("%w: status.failure_cap must be positive, got %d", ErrInvalidConfig, cfg.Status.FailureCap)
	}

	if cfg.Output.RenderWorkers <= 0 {
		return fmt.Errorf("%w: output.render_workers must be positive, got %d", ErrInvalidConfig, cfg.Output.RenderWorkers)
	}
	if cfg.Upload.Concurrency <= 0 {
		return fmt.Errorf("%w: upload.concurrency must be positive, got %d", ErrInvalidConfig, cfg.Upload.Concurrency)
	}
	if cfg.Nightly.Keep <= 0 {
		return fmt.Errorf("%w: nightly.keep must be positive, got %d", ErrInvalidConfig, cfg.Nightly.Keep)
	}
	return nil
}
