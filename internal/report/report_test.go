package report

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/murdock-reporter/internal/aggregate"
	"github.com/ChuLiYu/murdock-reporter/internal/parser"
	"github.com/ChuLiYu/murdock-reporter/internal/storage/journal"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

func raw(command string, status types.StatusCode, worker string, runtime float64) types.RawJob {
	return types.RawJob{Result: types.JobResult{
		Status:  status,
		Worker:  worker,
		Runtime: types.Seconds(runtime),
		Output:  "output of " + command,
		Body:    types.JobBody{Command: command},
	}}
}

func sampleRaws() []types.RawJob {
	return []types.RawJob{
		raw("./.murdock run_test my_app board1:gcc", types.TextStatus("fail"), "w2", 3),
		raw("./.murdock compile my_app board1:gcc", types.NumericStatus(0), "w1", 12.5),
		raw("./.murdock compile my_app board2:llvm", types.NumericStatus(1), "w2", 4),
		raw("./.murdock compile hello board1:gcc", types.TextStatus("pass"), "w1", 1.5),
		raw("./.murdock static_tests", types.NumericStatus(0), "w3", 30),
		raw("./.murdock check doc", types.NumericStatus(1), "w3", 2),
	}
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestBuildSortsByName(t *testing.T) {
	r := FromRaw(parser.Default(), sampleRaws())

	names := make([]string, len(r.Records))
	for i, rec := range r.Records {
		names[i] = rec.Name
	}
	assert.Equal(t, []string{
		"check/doc",
		"compile/hello/board1:gcc",
		"compile/my_app/board1:gcc",
		"compile/my_app/board2:llvm",
		"run_test/my_app/board1:gcc",
		"static_tests",
	}, names)
	assert.Empty(t, r.Conflicts)
	assert.False(t, r.Passed())
	assert.Equal(t, ResultFailed, r.ResultLine())
}

func TestGenerateArtifacts(t *testing.T) {
	dir := t.TempDir()
	r := FromRaw(nil, sampleRaws())

	require.NoError(t, Generate(context.Background(), r, Options{Dir: dir, RenderWorkers: 2, Logger: zerolog.Nop()}))

	var builds []BuildEntry
	readJSON(t, filepath.Join(dir, BuildsFile), &builds)
	assert.Equal(t, []BuildEntry{
		{Application: "hello", BuildCount: 1, BuildSuccess: 1, BuildFailures: 0},
		{Application: "my_app", BuildCount: 2, BuildSuccess: 1, BuildFailures: 1},
	}, builds)

	var buildFailures []FailureEntry
	readJSON(t, filepath.Join(dir, BuildFailuresFile), &buildFailures)
	assert.Equal(t, []FailureEntry{{Application: "my_app", Target: "board2", Toolchain: "llvm", Worker: "w2", Runtime: 4}}, buildFailures)

	var tests []TestEntry
	readJSON(t, filepath.Join(dir, TestsFile), &tests)
	require.Len(t, tests, 1)
	assert.Equal(t, "my_app", tests[0].Application)
	assert.Equal(t, 1, tests[0].TestCount)
	assert.Equal(t, 1, tests[0].TestFailures)
	require.Len(t, tests[0].Failures, 1)
	assert.Equal(t, types.TypeTests, tests[0].Failures[0].Type)
	assert.Empty(t, tests[0].Failures[0].Output, "job output is not part of the artifacts")

	var testFailures []FailureEntry
	readJSON(t, filepath.Join(dir, TestFailuresFile), &testFailures)
	assert.Len(t, testFailures, 1)

	var stats Stats
	readJSON(t, filepath.Join(dir, StatsFile), &stats)
	assert.Equal(t, 4, stats.TotalJobs)
	assert.Equal(t, 3, stats.TotalBuilds)
	assert.Equal(t, 1, stats.TotalTests)
	assert.Equal(t, "21s", stats.TotalTime)
	assert.Equal(t, aggregate.StatusFailed, stats.Status)
	require.Len(t, stats.Workers, 2)
	assert.Equal(t, WorkerEntry{Name: "w1", RuntimeAvg: 7, RuntimeMin: 1.5, RuntimeMax: 12.5, TotalCPUTime: 14, JobsPassed: 2, JobsCount: 2}, stats.Workers[0])
	assert.Equal(t, 2, stats.Workers[1].JobsFailed)

	badge, err := os.ReadFile(filepath.Join(dir, BadgeFile))
	require.NoError(t, err)
	assert.Contains(t, string(badge), `class="failed"`)

	var app AppData
	readJSON(t, filepath.Join(dir, "output", "builds", "my_app", AppFile), &app)
	assert.Len(t, app.Jobs, 2)
	assert.Len(t, app.Failures, 1)
	readJSON(t, filepath.Join(dir, "output", "tests", "my_app", AppFile), &app)
	assert.Len(t, app.Jobs, 1)

	_, err = os.Stat(filepath.Join(dir, "output", "builds", "my_app", "board1:gcc.txt"))
	assert.True(t, os.IsNotExist(err), "job outputs are only saved on request")
}

func TestGenerateSavesJobResults(t *testing.T) {
	dir := t.TempDir()
	r := FromRaw(nil, sampleRaws())
	require.NoError(t, Generate(context.Background(), r, Options{Dir: dir, SaveJobResults: true, RenderWorkers: 4, Logger: zerolog.Nop()}))

	data, err := os.ReadFile(filepath.Join(dir, "output", "builds", "my_app", "board1:gcc.txt"))
	require.NoError(t, err)
	assert.Equal(t, "output of ./.murdock compile my_app board1:gcc", string(data))

	_, err = os.Stat(filepath.Join(dir, "output", "check", "doc.txt"))
	assert.NoError(t, err)
}

func TestGenerateEmptyRun(t *testing.T) {
	dir := t.TempDir()
	r := Build(nil)
	require.NoError(t, Generate(context.Background(), r, Options{Dir: dir, Logger: zerolog.Nop()}))

	data, err := os.ReadFile(filepath.Join(dir, BuildsFile))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	var stats Stats
	readJSON(t, filepath.Join(dir, StatsFile), &stats)
	assert.Equal(t, "00s", stats.TotalTime)
	assert.Empty(t, stats.Workers)
	assert.Equal(t, aggregate.StatusFailed, stats.Status)

	data, err = os.ReadFile(filepath.Join(dir, StatsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"failed"`)
}

func TestStatsStatusPassed(t *testing.T) {
	r := FromRaw(nil, []types.RawJob{raw("./.murdock compile a b:c", types.NumericStatus(0), "w", 1)})
	assert.Equal(t, aggregate.StatusPassed, NewStats(r.Snapshot).Status)
}

func TestRenderFailureDoesNotStopSiblings(t *testing.T) {
	dir := t.TempDir()
	r := FromRaw(nil, []types.RawJob{
		raw("./.murdock compile good board:gcc", types.NumericStatus(0), "w", 1),
		raw("./.murdock compile blocked board:gcc", types.NumericStatus(0), "w", 1),
	})
	// 以檔案佔住目錄位置，讓 blocked 的 app.json 無法寫入
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "output", "builds"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output", "builds", "blocked"), []byte("x"), 0o644))

	err := Generate(context.Background(), r, Options{Dir: dir, RenderWorkers: 2, Logger: zerolog.Nop()})
	require.ErrorIs(t, err, ErrRender)
	assert.Contains(t, err.Error(), "builds/blocked")

	_, statErr := os.Stat(filepath.Join(dir, "output", "builds", "good", AppFile))
	assert.NoError(t, statErr)
}

func TestBadge(t *testing.T) {
	assert.Contains(t, string(Badge(true)), `<text x="50" y="14">passed</text>`)
	assert.Contains(t, string(Badge(false)), `<text x="50" y="14">failed</text>`)
}

func TestLoadResults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.json")
	data, err := json.Marshal(sampleRaws())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	raws, err := LoadResults(path)
	require.NoError(t, err)
	assert.Len(t, raws, 6)

	_, err = LoadResults(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrNoInput)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadResults(path)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoInput)
}

func TestLoadJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.journal")
	j, err := journal.Open(path, "s1", false)
	require.NoError(t, err)
	for _, r := range sampleRaws()[:3] {
		require.NoError(t, j.Append(journal.EventJob, &r, false))
	}
	require.NoError(t, j.Append(journal.EventDone, nil, true))
	require.NoError(t, j.Close())

	raws, err := LoadJournal(path)
	require.NoError(t, err)
	require.Len(t, raws, 3)
	assert.Equal(t, "./.murdock run_test my_app board1:gcc", raws[0].Result.Body.Command)

	_, err = LoadJournal(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestWriteSummary(t *testing.T) {
	r := FromRaw(nil, sampleRaws())
	r.CollectedErrors = []string{"my_app: undefined reference to foo"}

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, r, PlainStyles()))
	text := buf.String()

	lines := strings.Split(text, "\n")
	assert.Equal(t, ResultFailed, lines[0])
	assert.NotContains(t, text, "\x1b[", "plain styles emit no escape sequences")
	assert.Contains(t, text, "--- static tests: passed\noutput of ./.murdock static_tests\n")
	assert.Contains(t, text, "--- build job results (1 failed, 2 passed, 3 total):")
	assert.Contains(t, text, "my_app (1/2):\n    failed:\n    board2:llvm\n    passed:\n    board1:gcc\n")
	assert.Contains(t, text, "--- test job results (1 failed, 0 passed, 1 total):")
	assert.Contains(t, text, "--- check job results (1 failed, 0 passed, 1 total):\n    failed:\n    check/doc\n")
	assert.Contains(t, text, "-- collected errors:\nmy_app: undefined reference to foo\n")
	assert.Contains(t, text, "w1 total: 2 pass: 2 fail: 0 avg: 7.0s")
	assert.Contains(t, text, "runtime: total=16s min=04s max=12s avg=08s")
}

func TestWriteSummarySuccess(t *testing.T) {
	r := FromRaw(nil, []types.RawJob{raw("./.murdock compile a b:c", types.NumericStatus(0), "w", 1)})
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, r, PlainStyles()))
	assert.True(t, strings.HasPrefix(buf.String(), ResultSuccess+"\n"))
	assert.Contains(t, buf.String(), "--- no test jobs")
}

func TestSaveSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), SummaryFile)
	r := FromRaw(nil, sampleRaws())
	require.NoError(t, SaveSummary(path, r))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), ResultFailed+"\n"))
}
