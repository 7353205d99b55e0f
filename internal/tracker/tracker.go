// Package tracker keeps three capped lists of failed jobs for the live
// status document.
package tracker

import (
	"fmt"
	"strings"

	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// DefaultCap 每個類別最多保留的項目數
const DefaultCap = 20

// StaticTestsName 靜態檢查任務，失敗時永遠排在最前面
const StaticTestsName = "static_tests"

// Category 失敗類別
type Category string

const (
	CategoryJob   Category = "job"
	CategoryBuild Category = "build"
	CategoryTest  Category = "test"
)

// overflowNoun 溢出標記使用的名詞
func (c Category) overflowNoun() string {
	switch c {
	case CategoryBuild:
		return "build failures"
	case CategoryTest:
		return "test failures"
	default:
		return "failed jobs"
	}
}

type list struct {
	entries []types.FailedJob
	seen    int
}

// Tracker 三個獨立上限的失敗清單
// 由單一 reporter 擁有，不可並發使用
type Tracker struct {
	limit int
	lists map[Category]*list
}

// New 建立 Tracker；limit <= 0 時使用 DefaultCap
func New(limit int) *Tracker {
	if limit <= 0 {
		limit = DefaultCap
	}
	return &Tracker{
		limit: limit,
		lists: map[Category]*list{
			CategoryJob:   {},
			CategoryBuild: {},
			CategoryTest:  {},
		},
	}
}

// Cap 每個類別的上限
func (t *Tracker) Cap() int { return t.limit }

// Record 記錄一筆失敗
// front 為 true 時插入最前面（仍受上限約束，最後一筆會被擠掉）
func (t *Tracker) Record(cat Category, entry types.FailedJob, front bool) {
	l, ok := t.lists[cat]
	if !ok {
		cat = CategoryJob
		l = t.lists[cat]
	}
	l.seen++

	switch {
	case front:
		l.entries = append([]types.FailedJob{entry}, l.entries...)
	case len(l.entries) < t.limit:
		l.entries = append(l.entries, entry)
	}
	if len(l.entries) > t.limit {
		l.entries = l.entries[:t.limit]
	}
}

// RecordJob 依紀錄類型決定類別並記錄；成功的紀錄被忽略
func (t *Tracker) RecordJob(rec types.JobRecord, href string) bool {
	if rec.Status {
		return false
	}
	cat, name := Classify(rec)
	t.Record(cat, types.FailedJob{Name: name, Href: href}, rec.Name == StaticTestsName)
	return true
}

// Classify 回傳紀錄所屬的類別與顯示名稱
// builds/tests 的顯示名稱會去掉第一段（類型字元）
func Classify(rec types.JobRecord) (Category, string) {
	if rec.Name == StaticTestsName {
		return CategoryJob, rec.Name
	}
	if rec.Structured() {
		switch rec.Type {
		case types.TypeBuilds:
			return CategoryBuild, stripFirstSegment(rec.Name)
		case types.TypeTests:
			return CategoryTest, stripFirstSegment(rec.Name)
		}
	}
	return CategoryJob, rec.Name
}

func stripFirstSegment(name string) string {
	if _, rest, ok := strings.Cut(name, "/"); ok {
		return rest
	}
	return name
}

// Seen 某類別目前為止的失敗總數
func (t *Tracker) Seen(cat Category) int {
	if l, ok := t.lists[cat]; ok {
		return l.seen
	}
	return 0
}

// List 回傳某類別的清單，超出上限時附加 "(N more ...)" 標記
func (t *Tracker) List(cat Category) []types.FailedJob {
	l, ok := t.lists[cat]
	if !ok || len(l.entries) == 0 {
		return nil
	}
	out := make([]types.FailedJob, len(l.entries), len(l.entries)+1)
	copy(out, l.entries)
	if l.seen > t.limit {
		out = append(out, types.FailedJob{
			Name: fmt.Sprintf("(%d more %s)", l.seen-t.limit, cat.overflowNoun()),
		})
	}
	return out
}

// Apply 將三個清單寫入狀態更新
func (t *Tracker) Apply(u *types.StatusUpdate) {
	u.FailedJobs = t.List(CategoryJob)
	u.FailedBuilds = t.List(CategoryBuild)
	u.FailedTests = t.List(CategoryTest)
}
