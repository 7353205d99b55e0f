package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

func rawJob(command string, status types.StatusCode, runtime float64) types.RawJob {
	return types.RawJob{
		Result: types.JobResult{
			Status:  status,
			Worker:  "worker-1",
			Runtime: types.Seconds(runtime),
			Output:  "build output",
			Body:    types.JobBody{Command: command},
		},
	}
}

func TestParseCompileJob(t *testing.T) {
	rec := Default().Parse(rawJob("./.murdock compile my_app board1:gcc", types.NumericStatus(0), 12.5))

	assert.Equal(t, types.TypeBuilds, rec.Type)
	assert.Equal(t, "my_app", rec.Application)
	assert.Equal(t, "board1", rec.Target)
	assert.Equal(t, "gcc", rec.Toolchain)
	assert.True(t, rec.Status)
	assert.Equal(t, 12.5, rec.Runtime)
	assert.Equal(t, "compile/my_app/board1:gcc", rec.Name)
	assert.Equal(t, "worker-1", rec.Worker)
	assert.True(t, rec.Structured())
}

func TestParseFailedTestJob(t *testing.T) {
	rec := Default().Parse(rawJob("./.murdock run_test my_app board1:gcc", types.TextStatus("fail"), 3))

	assert.Equal(t, types.TypeTests, rec.Type)
	assert.False(t, rec.Status)
	assert.Equal(t, "my_app", rec.Application)
}

func TestParseNestedApplication(t *testing.T) {
	rec := Default().Parse(rawJob("./.murdock compile tests/unittests native:llvm", types.NumericStatus(0), 1))

	assert.Equal(t, "tests/unittests", rec.Application)
	assert.Equal(t, "native", rec.Target)
	assert.Equal(t, "llvm", rec.Toolchain)
}

func TestParseOpaqueFallback(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		wantName string
	}{
		{"single token", "./.murdock static_tests", "static_tests"},
		{"missing toolchain", "./.murdock compile my_app board1", "compile/my_app/board1"},
		{"invalid target characters", "./.murdock compile my_app bo.ard:gcc", "compile/my_app/bo.ard:gcc"},
		{"upper case type token", "./.murdock Compile my_app b:gcc", "Compile/my_app/b:gcc"},
		{"wrong entrypoint", "./other compile my_app b:gcc", "compile/my_app/b:gcc"},
		{"empty command", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Default().Parse(rawJob(tt.command, types.NumericStatus(1), 0))
			assert.Equal(t, tt.wantName, rec.Name)
			assert.Equal(t, types.JobType(tt.wantName), rec.Type)
			assert.False(t, rec.Structured())
			assert.Empty(t, rec.Target)
			assert.Empty(t, rec.Toolchain)
		})
	}
}

func TestParseUnknownTypeTokenKeptVerbatim(t *testing.T) {
	rec := Default().Parse(rawJob("./.murdock flash my_app board1:gcc", types.NumericStatus(0), 1))

	assert.Equal(t, types.JobType("flash"), rec.Type)
	assert.Equal(t, "my_app", rec.Application)
	assert.Equal(t, "board1", rec.Target)
}

func TestParseConfiguredTokens(t *testing.T) {
	c := NewClassifier("./ci", []string{"test", "run_test"}, []string{"build"})

	assert.Equal(t, types.TypeTests, c.Parse(rawJob("./ci test app b:gcc", types.NumericStatus(0), 0)).Type)
	assert.Equal(t, types.TypeBuilds, c.Parse(rawJob("./ci build app b:gcc", types.NumericStatus(0), 0)).Type)
	assert.Equal(t, types.JobType("compile"), c.Parse(rawJob("./ci compile app b:gcc", types.NumericStatus(0), 0)).Type)
}

func TestParseAnyEntrypoint(t *testing.T) {
	c := NewClassifier("", []string{"run_test"}, []string{"compile"})
	rec := c.Parse(rawJob("/usr/bin/murdock compile app b:gcc", types.NumericStatus(0), 0))
	assert.Equal(t, types.TypeBuilds, rec.Type)
}

func TestParseExtraTokensTolerated(t *testing.T) {
	rec := Default().Parse(rawJob("./.murdock compile app b:gcc --verbose", types.NumericStatus(0), 0))
	assert.Equal(t, types.TypeBuilds, rec.Type)
	assert.Equal(t, "compile/app/b:gcc/--verbose", rec.Name)
}

func TestParseIsIdempotent(t *testing.T) {
	c := Default()
	raw := rawJob("./.murdock run_test my_app board1:gcc", types.TextStatus("pass"), 7.25)

	first := c.Parse(raw)
	second := c.Parse(raw)
	require.Equal(t, first, second)
	assert.True(t, first == second)
}

func TestParseAll(t *testing.T) {
	raws := []types.RawJob{
		rawJob("./.murdock compile a b:gcc", types.NumericStatus(0), 1),
		rawJob("./.murdock static_tests", types.NumericStatus(0), 1),
	}
	records := Default().ParseAll(raws)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Application)
	assert.Equal(t, "static_tests", records[1].Name)
}
