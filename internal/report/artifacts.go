package report

import (
	"github.com/ChuLiYu/murdock-reporter/internal/aggregate"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// BuildEntry 是 builds.json 的一筆
type BuildEntry struct {
	Application   string `json:"application"`
	BuildCount    int    `json:"build_count"`
	BuildSuccess  int    `json:"build_success"`
	BuildFailures int    `json:"build_failures"`
}

// TestEntry 是 tests.json 的一筆
type TestEntry struct {
	Application  string            `json:"application"`
	Failures     []types.JobRecord `json:"failures"`
	TestCount    int               `json:"test_count"`
	TestSuccess  int               `json:"test_success"`
	TestFailures int               `json:"test_failures"`
}

// FailureEntry 是 build_failures.json / test_failures.json 的一筆
type FailureEntry struct {
	Application string  `json:"application"`
	Target      string  `json:"target"`
	Toolchain   string  `json:"toolchain"`
	Worker      string  `json:"worker"`
	Runtime     float64 `json:"runtime"`
}

// WorkerEntry 是 stats.json 中每個 worker 的統計
type WorkerEntry struct {
	Name         string  `json:"name"`
	RuntimeAvg   float64 `json:"runtime_avg"`
	RuntimeMin   float64 `json:"runtime_min"`
	RuntimeMax   float64 `json:"runtime_max"`
	TotalCPUTime float64 `json:"total_cpu_time"`
	JobsFailed   int     `json:"jobs_failed"`
	JobsPassed   int     `json:"jobs_passed"`
	JobsCount    int     `json:"jobs_count"`
}

// Stats 是 stats.json
type Stats struct {
	TotalJobs   int           `json:"total_jobs"`
	TotalBuilds int           `json:"total_builds"`
	TotalTests  int           `json:"total_tests"`
	TotalTime   string        `json:"total_time"`
	Status      string        `json:"status"` // 沒有任務時為 failed
	Workers     []WorkerEntry `json:"workers"`
}

// AppData 是 output/<type>/<application>/app.json
type AppData struct {
	Jobs     []types.JobRecord `json:"jobs"`
	Failures []types.JobRecord `json:"failures"`
}

// Builds lists build counts per application in first-observed order.
func Builds(s *aggregate.Snapshot) []BuildEntry {
	out := make([]BuildEntry, 0, len(s.Builds.Applications()))
	for _, name := range s.Builds.Applications() {
		app, _ := s.Builds.App(name)
		out = append(out, BuildEntry{
			Application:   name,
			BuildCount:    len(app.Jobs),
			BuildSuccess:  len(app.Success),
			BuildFailures: len(app.Failures),
		})
	}
	return out
}

// Tests lists test counts and failing records per application.
func Tests(s *aggregate.Snapshot) []TestEntry {
	out := make([]TestEntry, 0, len(s.Tests.Applications()))
	for _, name := range s.Tests.Applications() {
		app, _ := s.Tests.App(name)
		out = append(out, TestEntry{
			Application:  name,
			Failures:     app.Failures,
			TestCount:    len(app.Jobs),
			TestSuccess:  len(app.Success),
			TestFailures: len(app.Failures),
		})
	}
	return out
}

// Failures flattens the failing records of a category.
func Failures(c *aggregate.Category) []FailureEntry {
	out := make([]FailureEntry, 0, c.FailureCount)
	for _, name := range c.Applications() {
		app, _ := c.App(name)
		for _, rec := range app.Failures {
			out = append(out, FailureEntry{
				Application: name,
				Target:      rec.Target,
				Toolchain:   rec.Toolchain,
				Worker:      rec.Worker,
				Runtime:     rec.Runtime,
			})
		}
	}
	return out
}

// NewStats computes the global and per-worker statistics.
func NewStats(s *aggregate.Snapshot) Stats {
	stats := Stats{
		TotalJobs:   s.Jobs(),
		TotalBuilds: s.Builds.Count,
		TotalTests:  s.Tests.Count,
		TotalTime:   aggregate.FormatDuration(s.TotalTime),
		Status:      s.Status(),
		Workers:     []WorkerEntry{},
	}
	for _, name := range s.Workers() {
		w, _ := s.Worker(name)
		rt := aggregate.NewRuntimeStats(w.Runtimes)
		avg, _ := rt.Average()
		stats.Workers = append(stats.Workers, WorkerEntry{
			Name:         name,
			RuntimeAvg:   avg,
			RuntimeMin:   rt.Min,
			RuntimeMax:   rt.Max,
			TotalCPUTime: rt.Total,
			JobsFailed:   w.Failed,
			JobsPassed:   w.Passed,
			JobsCount:    rt.Count,
		})
	}
	return stats
}
