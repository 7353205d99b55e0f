package aggregate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/murdock-reporter/internal/parser"
	"github.com/ChuLiYu/murdock-reporter/internal/tree"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

func record(command string, status types.StatusCode, worker string, runtime float64) types.JobRecord {
	return parser.Default().Parse(types.RawJob{Result: types.JobResult{
		Status:  status,
		Worker:  worker,
		Runtime: types.Seconds(runtime),
		Body:    types.JobBody{Command: command},
	}})
}

func TestFoldBuildsAndTests(t *testing.T) {
	s := New()
	require.NoError(t, s.Fold(record("./.murdock compile my_app board1:gcc", types.NumericStatus(0), "w1", 12.5)))
	require.NoError(t, s.Fold(record("./.murdock compile my_app board2:gcc", types.NumericStatus(1), "w2", 3)))
	require.NoError(t, s.Fold(record("./.murdock run_test my_app board1:gcc", types.TextStatus("fail"), "w1", 1.5)))

	app, ok := s.Builds.App("my_app")
	require.True(t, ok)
	assert.Len(t, app.Jobs, 2)
	assert.Len(t, app.Success, 1)
	assert.Len(t, app.Failures, 1)

	tests, ok := s.Tests.App("my_app")
	require.True(t, ok)
	assert.Len(t, tests.Jobs, 1)
	assert.Empty(t, tests.Success)
	assert.Len(t, tests.Failures, 1)

	assert.Equal(t, 3, s.Jobs())
	assert.Equal(t, 2, s.Failures())
	assert.Equal(t, 1, s.Passed())
	assert.Equal(t, StatusFailed, s.Status())
	assert.InDelta(t, 17.0, s.TotalTime, 1e-9)

	w1, ok := s.Worker("w1")
	require.True(t, ok)
	assert.Equal(t, []float64{12.5, 1.5}, w1.Runtimes)
	assert.Equal(t, 1, w1.Passed)
	assert.Equal(t, 1, w1.Failed)
	assert.Equal(t, []string{"w1", "w2"}, s.Workers())
}

func TestApplicationOrderIsFirstObserved(t *testing.T) {
	s := New()
	for _, app := range []string{"zeta", "alpha", "zeta", "mid"} {
		require.NoError(t, s.Fold(record("./.murdock compile "+app+" b:gcc", types.NumericStatus(0), "w", 1)))
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, s.Builds.Applications())
}

func TestCountInvariants(t *testing.T) {
	s := New()
	for i := 0; i < 40; i++ {
		status := types.NumericStatus(i % 3)
		kind := "compile"
		if i%2 == 0 {
			kind = "run_test"
		}
		cmd := fmt.Sprintf("./.murdock %s app%d board%d:gcc", kind, i%5, i)
		require.NoError(t, s.Fold(record(cmd, status, fmt.Sprintf("w%d", i%4), float64(i))))
	}

	assert.Equal(t, s.Builds.FailureCount+s.Tests.FailureCount, s.Failures())
	for _, cat := range []*Category{s.Builds, s.Tests} {
		for _, name := range cat.Applications() {
			app, _ := cat.App(name)
			assert.Equal(t, len(app.Jobs), len(app.Success)+len(app.Failures), name)
		}
	}
	assert.Equal(t, StatusFailed, s.Status())
}

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusFailed, New().Status(), "zero jobs is failure")

	s := New()
	require.NoError(t, s.Fold(record("./.murdock compile a b:gcc", types.TextStatus("pass"), "w", 1)))
	assert.Equal(t, StatusPassed, s.Status())

	// misc jobs do not count towards the result
	require.NoError(t, s.Fold(record("./.murdock static_tests", types.NumericStatus(1), "w", 1)))
	assert.Equal(t, StatusPassed, s.Status())
	assert.Equal(t, 1, s.MiscCount)
}

func TestMiscTree(t *testing.T) {
	s := New()
	require.NoError(t, s.Fold(record("./.murdock static_tests", types.NumericStatus(0), "w", 1)))
	require.NoError(t, s.Fold(record("./.murdock sizes app board", types.NumericStatus(0), "w", 1)))
	// structured shape with an unknown type token
	require.NoError(t, s.Fold(record("./.murdock lint my_app b:gcc", types.NumericStatus(0), "w", 1)))

	assert.Equal(t, 3, s.MiscCount)
	assert.Equal(t, 3, s.Misc.Len())
	assert.Empty(t, s.Builds.Applications())
	assert.Empty(t, s.Workers())
	assert.Equal(t, []string{"static_tests", "sizes", "lint"}, s.Misc.Keys())
}

func TestMiscDuplicateIsCountedOnce(t *testing.T) {
	s := New()
	rec := record("./.murdock check doc", types.NumericStatus(1), "w", 2)
	require.NoError(t, s.Fold(rec))
	require.NoError(t, s.Fold(rec))

	assert.Equal(t, 1, s.MiscCount)
	assert.Equal(t, s.Misc.Len(), s.MiscCount)
	assert.Zero(t, s.Conflicts)
}

func TestMiscConflictIsSkipped(t *testing.T) {
	s := New()
	first := record("./.murdock static_tests", types.NumericStatus(0), "w1", 1)
	second := record("./.murdock static_tests", types.NumericStatus(1), "w2", 2)

	require.NoError(t, s.Fold(first))
	err := s.Fold(second)
	var conflict *tree.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{"static_tests"}, conflict.Path)
	assert.Equal(t, 1, s.Conflicts)
	assert.Equal(t, 1, s.MiscCount)

	// identical record is not a conflict
	require.NoError(t, s.Fold(first))
}

func TestMiscEmptyName(t *testing.T) {
	s := New()
	err := s.Fold(record("./.murdock", types.NumericStatus(0), "w", 1))
	assert.ErrorIs(t, err, tree.ErrEmptyPath)
	assert.Equal(t, 1, s.Conflicts)
}

func TestBuild(t *testing.T) {
	records := []types.JobRecord{
		record("./.murdock compile a b:gcc", types.NumericStatus(0), "w", 1),
		record("./.murdock x", types.NumericStatus(0), "w", 1),
		record("./.murdock x", types.NumericStatus(1), "w", 1),
	}
	s, errs := Build(records)
	assert.Len(t, errs, 1)
	assert.Equal(t, 1, s.Jobs())
}

func TestRuntimeStats(t *testing.T) {
	stats := NewRuntimeStats([]float64{4, 1, 7})
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 12.0, stats.Total)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 7.0, stats.Max)
	avg, ok := stats.Average()
	require.True(t, ok)
	assert.Equal(t, 4.0, avg)

	_, ok = NewRuntimeStats(nil).Average()
	assert.False(t, ok)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{266709, "03d 02h 05m 09s"},
		{259509, "03d 00h 05m 09s"},
		{0, "00s"},
		{9.9, "09s"},
		{65, "01m 05s"},
		{3600, "01h 00m 00s"},
		{86400, "01d 00h 00m 00s"},
		{-65, "01m 05s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.seconds))
		})
	}
}
