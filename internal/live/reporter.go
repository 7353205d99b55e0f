// Package live streams job results from the queue and keeps the CI
// dashboard's status document up to date while a run is in progress.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ChuLiYu/murdock-reporter/internal/aggregate"
	"github.com/ChuLiYu/murdock-reporter/internal/metrics"
	"github.com/ChuLiYu/murdock-reporter/internal/output"
	"github.com/ChuLiYu/murdock-reporter/internal/parser"
	"github.com/ChuLiYu/murdock-reporter/internal/publisher"
	"github.com/ChuLiYu/murdock-reporter/internal/queue"
	"github.com/ChuLiYu/murdock-reporter/internal/storage/journal"
	"github.com/ChuLiYu/murdock-reporter/internal/tracker"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// SetupStatus 第一次發佈的狀態文字
const SetupStatus = "setting up build"

// ============================================================================
// 狀態機
// ============================================================================

// State 報告器的生命週期狀態
type State int32

const (
	StateSettingUp State = iota
	StateStreaming
	StateDone
)

func (s State) String() string {
	switch s {
	case StateSettingUp:
		return "setting_up"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures a Reporter.
type Options struct {
	Queue       string
	BatchSize   int
	PollTimeout time.Duration // 佇列錯誤後的退避時間
	OutputDir   string        // 任務輸出寫入 <OutputDir>/output/...
	HTTPRoot    string
	FailureCap  int
	MinInterval time.Duration
	JournalPath string // 空字串代表不寫日誌
	Classifier  *parser.Classifier
	Metrics     *metrics.Collector
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Reporter owns all aggregation state for one run; it is not safe for
// concurrent use.
type Reporter struct {
	opts    Options
	waiter  queue.Waiter
	pub     publisher.Publisher
	limiter *publisher.RateLimiter
	tracker *tracker.Tracker
	agg     *aggregate.Snapshot
	journal *journal.Journal
	session string
	log     zerolog.Logger

	fields map[string]json.RawMessage // 合併後的進度欄位
	state  State
	dirty  bool // 有尚未發佈的變更
}

// New creates a reporter in the SettingUp state.
func New(w queue.Waiter, p publisher.Publisher, opts Options) *Reporter {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = time.Second
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Classifier == nil {
		opts.Classifier = parser.Default()
	}

	limiter := publisher.NewRateLimiter(opts.MinInterval)
	limiter.Now = opts.Now

	session := uuid.NewString()
	return &Reporter{
		opts:    opts,
		waiter:  w,
		pub:     p,
		limiter: limiter,
		tracker: tracker.New(opts.FailureCap),
		agg:     aggregate.New(),
		session: session,
		log: opts.Logger.With().
			Str("component", "live").
			Str("queue", opts.Queue).
			Str("session", session).
			Logger(),
		fields: make(map[string]json.RawMessage),
		state:  StateSettingUp,
	}
}

// State returns the current lifecycle state.
func (r *Reporter) State() State { return r.state }

// Session 本次執行的識別碼（寫入日誌事件）
func (r *Reporter) Session() string { return r.session }

// Aggregate exposes the running aggregate; callers must not mutate it.
func (r *Reporter) Aggregate() *aggregate.Snapshot { return r.agg }

// ============================================================================
// 主迴圈
// ============================================================================

// Run publishes the setup status, then consumes the queue until a "done"
// element arrives or ctx is cancelled.
//
// Reaching "done" triggers one unconditional final publish and returns nil.
// Cancellation returns ctx.Err() without a final publish.
func (r *Reporter) Run(ctx context.Context) error {
	if r.opts.JournalPath != "" {
		j, err := journal.Open(r.opts.JournalPath, r.session, false)
		if err != nil {
			return fmt.Errorf("live: open journal: %w", err)
		}
		r.journal = j
		defer func() {
			if err := j.Close(); err != nil {
				r.log.Warn().Err(err).Msg("failed to close journal")
			}
		}()
	}

	r.log.Info().Int("batch", r.opts.BatchSize).Msg("reporter starting")
	setup := types.StatusUpdate{Status: types.StatusText(SetupStatus)}
	r.publish(ctx, setup)
	r.state = StateStreaming

	for {
		if err := ctx.Err(); err != nil {
			r.log.Info().Msg("interrupted, exiting without final publish")
			return err
		}

		events, err := r.waiter.Wait(ctx, r.opts.Queue, r.opts.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				r.log.Info().Msg("interrupted, exiting without final publish")
				return ctx.Err()
			}
			r.opts.Metrics.RecordQueueError()
			r.log.Error().Err(err).Dur("backoff", r.opts.PollTimeout).Msg("queue wait failed")
			if !sleep(ctx, r.opts.PollTimeout) {
				return ctx.Err()
			}
			continue
		}
		r.opts.Metrics.ObserveBatch(len(events))

		for _, ev := range events {
			if r.handle(ev) {
				r.finish(ctx)
				return nil
			}
			r.maybePublish(ctx)
		}
		if len(events) == 0 {
			r.maybePublish(ctx)
		}
	}
}

// handle folds one queue element into the state and reports whether it
// carried the "done" marker.
func (r *Reporter) handle(ev types.QueueEvent) bool {
	if ev.Job != nil {
		r.handleJob(*ev.Job)
		r.dirty = true
	}
	for _, key := range types.ProgressFields {
		if raw, ok := ev.Fields[key]; ok {
			r.fields[key] = raw
			r.dirty = true
		}
	}
	return ev.Status() == types.StatusDone
}

func (r *Reporter) handleJob(raw types.RawJob) {
	rec := r.opts.Classifier.Parse(raw)
	logger := r.log.With().Str("job", rec.Name).Bool("passed", rec.Status).Logger()

	var href string
	rel, err := output.Save(r.opts.OutputDir, rec)
	if err != nil {
		logger.Warn().Err(err).Msg("job output not saved")
	} else {
		href = output.Link(r.opts.HTTPRoot, rel)
	}

	if err := r.agg.Fold(rec); err != nil {
		r.opts.Metrics.RecordConflict()
		logger.Warn().Err(err).Msg("job skipped by aggregation")
	}

	if r.tracker.RecordJob(rec, href) {
		cat, _ := tracker.Classify(rec)
		r.opts.Metrics.RecordFailure(string(cat))
	}
	r.opts.Metrics.RecordJob(metricType(rec.Type), rec.Status)

	if r.journal != nil {
		if err := r.journal.Append(journal.EventJob, &raw, false); err != nil {
			logger.Warn().Err(err).Msg("journal append failed")
		}
	}
	logger.Debug().Float64("runtime", rec.Runtime).Str("worker", rec.Worker).Msg("job received")
}

func metricType(t types.JobType) string {
	switch t {
	case types.TypeBuilds, types.TypeTests:
		return string(t)
	default:
		return "other"
	}
}

// Status builds the document that the next publish would send.
func (r *Reporter) Status() types.StatusUpdate {
	var u types.StatusUpdate
	for key, raw := range r.fields {
		u.SetField(key, raw)
	}
	r.tracker.Apply(&u)
	return u
}

func (r *Reporter) maybePublish(ctx context.Context) {
	if !r.dirty {
		return
	}
	if !r.limiter.Allow() {
		r.opts.Metrics.RecordPublish(metrics.PublishSuppressed)
		return
	}
	r.dirty = false
	r.publish(ctx, r.Status())
}

func (r *Reporter) finish(ctx context.Context) {
	if r.journal != nil {
		if err := r.journal.Append(journal.EventDone, nil, true); err != nil {
			r.log.Warn().Err(err).Msg("journal append failed")
		}
	}
	r.dirty = false
	r.publish(ctx, r.Status())
	r.state = StateDone
	r.log.Info().
		Int("jobs", r.agg.Jobs()).
		Int("failures", r.agg.Failures()).
		Str("status", r.agg.Status()).
		Msg("run finished")
}

// publish 發佈失敗只記錄，不中斷迴圈
func (r *Reporter) publish(ctx context.Context, status types.StatusUpdate) {
	if err := r.pub.Publish(ctx, status); err != nil {
		r.opts.Metrics.RecordPublish(metrics.PublishFailed)
		if !errors.Is(err, context.Canceled) {
			r.log.Warn().Err(err).Msg("status publish failed")
		}
		return
	}
	r.opts.Metrics.RecordPublish(metrics.PublishOK)
}

// sleep waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
