// Package report builds the one-shot report of a finished run: JSON
// artifacts, the badge, per-application files and the text summary.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ChuLiYu/murdock-reporter/internal/aggregate"
	"github.com/ChuLiYu/murdock-reporter/internal/metrics"
	"github.com/ChuLiYu/murdock-reporter/internal/output"
	"github.com/ChuLiYu/murdock-reporter/internal/parser"
	"github.com/ChuLiYu/murdock-reporter/internal/snapshot"
	"github.com/ChuLiYu/murdock-reporter/internal/storage/journal"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// 產物檔名
const (
	BuildsFile        = "builds.json"
	BuildFailuresFile = "build_failures.json"
	TestsFile         = "tests.json"
	TestFailuresFile  = "test_failures.json"
	StatsFile         = "stats.json"
	BadgeFile         = "badge.svg"
	SummaryFile       = "summary.txt"
	AppFile           = "app.json"
)

var (
	// ErrNoInput 找不到輸入檔
	ErrNoInput = errors.New("report: input not found")
	// ErrRender 至少一個應用程式的輸出檔產生失敗
	ErrRender = errors.New("report: application render failed")
)

// Report is the finalized, read-only result of a run.
type Report struct {
	Records   []types.JobRecord // 依名稱排序
	Snapshot  *aggregate.Snapshot
	Conflicts []error

	// CollectedErrors 由 post-build 階段填入，出現在摘要中
	CollectedErrors []string
}

// Build sorts records by name and aggregates them.
func Build(records []types.JobRecord) *Report {
	sorted := make([]types.JobRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	snap, conflicts := aggregate.Build(sorted)
	return &Report{Records: sorted, Snapshot: snap, Conflicts: conflicts}
}

// FromRaw parses raw results with c and builds the report.
func FromRaw(c *parser.Classifier, raws []types.RawJob) *Report {
	if c == nil {
		c = parser.Default()
	}
	return Build(c.ParseAll(raws))
}

// Passed reports whether no build or test failed.
func (r *Report) Passed() bool {
	return r.Snapshot.Builds.FailureCount == 0 && r.Snapshot.Tests.FailureCount == 0
}

// ============================================================================
// 輸入
// ============================================================================

// LoadResults reads a result.json array of raw jobs.
func LoadResults(path string) ([]types.RawJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoInput, path)
		}
		return nil, fmt.Errorf("report: read %s: %w", path, err)
	}
	var raws []types.RawJob
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("report: decode %s: %w", path, err)
	}
	return raws, nil
}

// LoadJournal rebuilds the raw jobs recorded by a live run.
func LoadJournal(path string) ([]types.RawJob, error) {
	var raws []types.RawJob
	err := journal.ReplayJobs(path, func(job types.RawJob) error {
		raws = append(raws, job)
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoInput, path)
	}
	if err != nil {
		return raws, fmt.Errorf("report: replay %s: %w", path, err)
	}
	return raws, nil
}

// ============================================================================
// 產生
// ============================================================================

// Options controls Generate.
type Options struct {
	Dir            string
	SaveJobResults bool
	RenderWorkers  int
	Metrics        *metrics.Collector
	Logger         zerolog.Logger
}

// Generate writes every artifact into opts.Dir.
//
// Per-application files are rendered concurrently; a failing application
// does not stop the others, and all failures are returned wrapped in
// ErrRender after everything else has been written.
func Generate(ctx context.Context, r *Report, opts Options) error {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	log := opts.Logger.With().Str("component", "report").Str("dir", opts.Dir).Logger()

	for _, err := range r.Conflicts {
		log.Warn().Err(err).Msg("job skipped by aggregation")
	}

	artifacts := []struct {
		name string
		v    any
	}{
		{BuildsFile, Builds(r.Snapshot)},
		{BuildFailuresFile, Failures(r.Snapshot.Builds)},
		{TestsFile, Tests(r.Snapshot)},
		{TestFailuresFile, Failures(r.Snapshot.Tests)},
		{StatsFile, NewStats(r.Snapshot)},
	}
	for _, a := range artifacts {
		if err := snapshot.WriteJSON(filepath.Join(opts.Dir, a.name), a.v, snapshot.Compact); err != nil {
			return fmt.Errorf("report: write %s: %w", a.name, err)
		}
	}

	if err := WriteBadge(filepath.Join(opts.Dir, BadgeFile), r.Passed()); err != nil {
		return fmt.Errorf("report: write %s: %w", BadgeFile, err)
	}

	if opts.SaveJobResults {
		for _, rec := range r.Records {
			if _, err := output.Save(opts.Dir, rec); err != nil {
				log.Warn().Err(err).Str("job", rec.Name).Msg("job output not saved")
			}
		}
	}

	failed := RenderApplications(ctx, r.Snapshot, opts)
	for _, err := range failed {
		log.Error().Err(err).Msg("application render failed")
	}
	log.Info().
		Int("jobs", r.Snapshot.Jobs()).
		Int("failures", r.Snapshot.Failures()).
		Str("status", r.Snapshot.Status()).
		Msg("report written")

	if len(failed) > 0 {
		return fmt.Errorf("%w: %w", ErrRender, errors.Join(failed...))
	}
	return nil
}
