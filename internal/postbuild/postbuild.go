// Package postbuild runs the extra analyses performed after a static
// report: firmware size tables, JSON metrics emitted by jobs and the
// collected output of error jobs.
package postbuild

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ChuLiYu/murdock-reporter/internal/snapshot"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// 產物檔名
const (
	SizesFile   = "sizes.json"
	MetricsFile = "metrics.json"
)

// ErrorJobToken 收集輸出的錯誤任務類型
const ErrorJobToken = "error"

// indent 與其他彙總檔不同，這兩個檔案以四個空白縮排
const indent snapshot.Indent = "    "

// Options controls Run.
type Options struct {
	Dir    string
	Logger zerolog.Logger
}

// Result collects what Run produced besides the files.
type Result struct {
	Errors    []string // 錯誤任務的輸出
	Conflicts []error  // 合併衝突，對應的資料被略過
}

// Run writes sizes.json and metrics.json into opts.Dir and returns the
// collected error outputs.
func Run(records []types.JobRecord, opts Options) (*Result, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	log := opts.Logger.With().Str("component", "postbuild").Logger()
	res := &Result{}

	sizes, errs := Sizes(records)
	res.Conflicts = append(res.Conflicts, errs...)
	if err := snapshot.WriteJSON(filepath.Join(opts.Dir, SizesFile), sizes, indent); err != nil {
		return nil, fmt.Errorf("postbuild: write %s: %w", SizesFile, err)
	}

	metrics, errs := Metrics(records)
	res.Conflicts = append(res.Conflicts, errs...)
	doc := struct {
		Metrics any `json:"metrics"`
	}{Metrics: metrics}
	if err := snapshot.WriteJSON(filepath.Join(opts.Dir, MetricsFile), doc, indent); err != nil {
		return nil, fmt.Errorf("postbuild: write %s: %w", MetricsFile, err)
	}

	for _, err := range res.Conflicts {
		log.Warn().Err(err).Msg("post-build data skipped")
	}

	res.Errors = CollectErrors(records)
	log.Info().
		Int("apps", len(sizes.AppTotals)).
		Int("errors", len(res.Errors)).
		Msg("post-build done")
	return res, nil
}

// CollectErrors returns the outputs of failing "error" jobs in order.
func CollectErrors(records []types.JobRecord) []string {
	var out []string
	for _, rec := range records {
		if rec.Status {
			continue
		}
		if rec.Name != ErrorJobToken && !strings.HasPrefix(rec.Name, ErrorJobToken+"/") {
			continue
		}
		out = append(out, strings.TrimRight(rec.Output, "\n"))
	}
	return out
}

// boardKey 與 CI 腳本相同，以 "<target>:<toolchain>" 作為鍵
func boardKey(rec types.JobRecord) string {
	return rec.Target + ":" + rec.Toolchain
}
