// Package aggregate folds parsed job records into per-application,
// per-worker and global statistics.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ChuLiYu/murdock-reporter/internal/tree"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// 整體結果
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// ============================================================================
// 每個應用程式的結果
// ============================================================================

// AppResults 單一應用程式在某一類別（builds 或 tests）下的紀錄
type AppResults struct {
	Jobs     []types.JobRecord `json:"jobs"`
	Success  []types.JobRecord `json:"success"`
	Failures []types.JobRecord `json:"failures"`
}

// Category 一個任務類別的所有應用程式，保留首次出現的順序
type Category struct {
	Type         types.JobType
	Count        int
	SuccessCount int
	FailureCount int

	apps  map[string]*AppResults
	order []string
}

func newCategory(t types.JobType) *Category {
	return &Category{Type: t, apps: make(map[string]*AppResults)}
}

// Applications 依首次出現順序回傳應用程式名稱
func (c *Category) Applications() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// App 回傳某個應用程式的結果
func (c *Category) App(name string) (*AppResults, bool) {
	a, ok := c.apps[name]
	return a, ok
}

func (c *Category) add(rec types.JobRecord) {
	app, ok := c.apps[rec.Application]
	if !ok {
		app = &AppResults{
			Jobs:     []types.JobRecord{},
			Success:  []types.JobRecord{},
			Failures: []types.JobRecord{},
		}
		c.apps[rec.Application] = app
		c.order = append(c.order, rec.Application)
	}
	c.Count++
	app.Jobs = append(app.Jobs, rec)
	if rec.Status {
		c.SuccessCount++
		app.Success = append(app.Success, rec)
	} else {
		c.FailureCount++
		app.Failures = append(app.Failures, rec)
	}
}

// ============================================================================
// Worker 統計
// ============================================================================

// WorkerStats 單一 worker 的執行紀錄
type WorkerStats struct {
	Runtimes []float64
	Passed   int
	Failed   int
}

// RuntimeStats 一組執行時間的統計值
type RuntimeStats struct {
	Count int
	Total float64
	Min   float64
	Max   float64
}

// NewRuntimeStats 計算 total/min/max
func NewRuntimeStats(values []float64) RuntimeStats {
	s := RuntimeStats{Count: len(values)}
	for i, v := range values {
		s.Total += v
		if i == 0 || v < s.Min {
			s.Min = v
		}
		if i == 0 || v > s.Max {
			s.Max = v
		}
	}
	return s
}

// Average 平均值；空集合時 ok 為 false
func (s RuntimeStats) Average() (avg float64, ok bool) {
	if s.Count == 0 {
		return 0, false
	}
	return s.Total / float64(s.Count), true
}

// ============================================================================
// Snapshot
// ============================================================================

// Snapshot 目前為止所有紀錄的彙總狀態
// 由單一 reporter 擁有，不可並發修改
type Snapshot struct {
	Builds *Category
	Tests  *Category

	// Misc 其他任務，依命令片段組成的樹
	Misc      *tree.Node[types.JobRecord]
	MiscCount int
	Conflicts int

	// TotalTime builds 與 tests 的執行時間總和（秒）
	TotalTime float64

	workers map[string]*WorkerStats
}

// New 建立空的 Snapshot
func New() *Snapshot {
	return &Snapshot{
		Builds:  newCategory(types.TypeBuilds),
		Tests:   newCategory(types.TypeTests),
		Misc:    tree.NewBranch[types.JobRecord](),
		workers: make(map[string]*WorkerStats),
	}
}

// Build 一次彙總有限集合；衝突的紀錄被略過並計數
func Build(records []types.JobRecord) (*Snapshot, []error) {
	s := New()
	var errs []error
	for _, rec := range records {
		if err := s.Fold(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return s, errs
}

// Fold 將一筆紀錄加入彙總
//
// builds/tests 紀錄進入應用程式與 worker 統計；其他紀錄進入 Misc 樹。
// Misc 樹發生衝突時回傳 *tree.ConflictError，紀錄被略過。
func (s *Snapshot) Fold(rec types.JobRecord) error {
	if rec.Structured() {
		switch rec.Type {
		case types.TypeBuilds:
			s.Builds.add(rec)
			s.addWorker(rec)
			return nil
		case types.TypeTests:
			s.Tests.add(rec)
			s.addWorker(rec)
			return nil
		}
	}
	return s.addMisc(rec)
}

func (s *Snapshot) addWorker(rec types.JobRecord) {
	w, ok := s.workers[rec.Worker]
	if !ok {
		w = &WorkerStats{}
		s.workers[rec.Worker] = w
	}
	w.Runtimes = append(w.Runtimes, rec.Runtime)
	if rec.Status {
		w.Passed++
	} else {
		w.Failed++
	}
	s.TotalTime += rec.Runtime
}

func (s *Snapshot) addMisc(rec types.JobRecord) error {
	if err := s.Misc.Insert(MiscPath(rec), rec, sameRecord); err != nil {
		s.Conflicts++
		return fmt.Errorf("aggregate %q: %w", rec.Name, err)
	}
	// 相同紀錄重複送達時樹不變，計數以葉節點為準
	s.MiscCount = s.Misc.Len()
	return nil
}

func sameRecord(a, b types.JobRecord) bool { return a == b }

// MiscPath 紀錄在 Misc 樹中的路徑
func MiscPath(rec types.JobRecord) []string {
	var path []string
	for _, part := range strings.Split(rec.Name, "/") {
		if part != "" {
			path = append(path, part)
		}
	}
	return path
}

// Jobs builds 與 tests 的總數
func (s *Snapshot) Jobs() int {
	return s.Builds.Count + s.Tests.Count
}

// Failures builds 與 tests 的失敗總數
func (s *Snapshot) Failures() int {
	return s.Builds.FailureCount + s.Tests.FailureCount
}

// Passed 成功總數
func (s *Snapshot) Passed() int {
	return s.Builds.SuccessCount + s.Tests.SuccessCount
}

// Status 沒有任何任務也視為失敗
func (s *Snapshot) Status() string {
	if s.Jobs() > 0 && s.Failures() == 0 {
		return StatusPassed
	}
	return StatusFailed
}

// Workers 依名稱排序回傳 worker
func (s *Snapshot) Workers() []string {
	names := make([]string, 0, len(s.workers))
	for name := range s.workers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Worker 回傳某個 worker 的統計
func (s *Snapshot) Worker(name string) (*WorkerStats, bool) {
	w, ok := s.workers[name]
	return w, ok
}

// Category 依類型取得類別；非 builds/tests 回傳 nil
func (s *Snapshot) Category(t types.JobType) *Category {
	switch t {
	case types.TypeBuilds:
		return s.Builds
	case types.TypeTests:
		return s.Tests
	}
	return nil
}

// FormatDuration 以 "03d 02h 05m 09s" 格式顯示秒數
// 從最大的非零單位開始，秒數永遠顯示
func FormatDuration(seconds float64) string {
	total := int64(seconds)
	if total < 0 {
		total = -total
	}
	days, total := total/86400, total%86400
	hours, total := total/3600, total%3600
	minutes, secs := total/60, total%60

	switch {
	case days > 0:
		return fmt.Sprintf("%02dd %02dh %02dm %02ds", days, hours, minutes, secs)
	case hours > 0:
		return fmt.Sprintf("%02dh %02dm %02ds", hours, minutes, secs)
	case minutes > 0:
		return fmt.Sprintf("%02dm %02ds", minutes, secs)
	default:
		return fmt.Sprintf("%02ds", secs)
	}
}
