// Package nightly maintains the list of recent nightly builds of a branch.
package nightly

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/ChuLiYu/murdock-reporter/internal/snapshot"
)

// 檔名與預設值
const (
	ListFile      = "nightlies.json"
	LatestLink    = "latest"
	SummaryFile   = "summary.txt"
	DefaultBranch = "master"
	DefaultKeep   = 7
)

// 建置結果
const (
	ResultPassed  = "passed"
	ResultErrored = "errored"
)

// ErrNoLatest 分支目錄下沒有 latest 連結
var ErrNoLatest = errors.New("nightly: latest build not found")

var successLine = regexp.MustCompile(`^--- result: BUILD SUCCESSFUL\.`)

// Entry 一次 nightly 建置
type Entry struct {
	Commit string  `json:"commit"`
	Result string  `json:"result"`
	Since  float64 `json:"since"` // unix 秒
}

// Load reads a nightlies.json; a missing or unreadable list is empty.
func Load(path string) []Entry {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

// Update records the build that <repodir>/<branch>/latest points to at
// the front of <repodir>/<branch>/nightlies.json, keeping at most keep
// entries.
func Update(repodir, branch string, keep int, now time.Time) ([]Entry, error) {
	if branch == "" {
		branch = DefaultBranch
	}
	if keep <= 0 {
		keep = DefaultKeep
	}
	branchDir := filepath.Join(repodir, branch)
	listPath := filepath.Join(branchDir, ListFile)

	latest, err := filepath.EvalSymlinks(filepath.Join(branchDir, LatestLink))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoLatest, err)
	}
	commit := filepath.Base(latest)

	result, err := buildResult(filepath.Join(latest, SummaryFile))
	if err != nil {
		return nil, err
	}

	entries := Load(listPath)
	out := make([]Entry, 0, len(entries)+1)
	out = append(out, Entry{Commit: commit, Result: result, Since: float64(now.Unix())})
	for _, e := range entries {
		if e.Commit != commit {
			out = append(out, e)
		}
	}
	if len(out) > keep {
		out = out[:keep]
	}

	if err := snapshot.WriteJSON(listPath, out, snapshot.Indent("    ")); err != nil {
		return nil, fmt.Errorf("nightly: write %s: %w", listPath, err)
	}
	return out, nil
}

// buildResult 摘要中有成功結果行時為 passed，否則 errored
func buildResult(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("nightly: open summary: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for scanner.Scan() {
		if successLine.Match(scanner.Bytes()) {
			return ResultPassed, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("nightly: read summary: %w", err)
	}
	return ResultErrored, nil
}
