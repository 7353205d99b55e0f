package postbuild

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ChuLiYu/murdock-reporter/internal/tree"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// sizeHeader 是 size(1) 輸出的欄位
var sizeHeader = []string{"text", "data", "bss", "dec", "hex", "filename"}

// SizeReport 是 sizes.json
type SizeReport struct {
	Sizes       *tree.Node[int64]           `json:"sizes"`
	AppTotals   map[string]map[string]int64 `json:"app_totals"`
	BoardTotals map[string]map[string]int64 `json:"board_totals"`
}

// ParseSizes finds the size(1) table in a build log and returns the
// numeric columns; hex and filename are dropped.
func ParseSizes(output string) (map[string]int64, bool) {
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if !isSizeHeader(line) || i+1 >= len(lines) {
			continue
		}
		values := strings.Split(lines[i+1], "\t")
		if len(values) < len(sizeHeader) {
			return nil, false
		}
		out := make(map[string]int64, 4)
		for n, field := range sizeHeader {
			if field == "hex" || field == "filename" {
				continue
			}
			v, err := strconv.ParseInt(strings.TrimSpace(values[n]), 10, 64)
			if err != nil {
				return nil, false
			}
			out[field] = v
		}
		return out, true
	}
	return nil, false
}

func isSizeHeader(line string) bool {
	fields := strings.Split(line, "\t")
	if len(fields) != len(sizeHeader) {
		return false
	}
	for i, f := range fields {
		if strings.TrimSpace(f) != sizeHeader[i] {
			return false
		}
	}
	return true
}

func sameInt(a, b int64) bool { return a == b }

// Sizes collects the size tables of passing builds.
//
// A build whose table disagrees with one already recorded for the same
// application and board is skipped and reported.
func Sizes(records []types.JobRecord) (*SizeReport, []error) {
	report := &SizeReport{
		Sizes:       tree.NewBranch[int64](),
		AppTotals:   make(map[string]map[string]int64),
		BoardTotals: make(map[string]map[string]int64),
	}
	var errs []error

	for _, rec := range records {
		if !rec.Status || !rec.Structured() || rec.Type != types.TypeBuilds {
			continue
		}
		sizes, ok := ParseSizes(rec.Output)
		if !ok {
			continue
		}

		board := boardKey(rec)
		job := tree.NewBranch[int64]()
		for field, v := range sizes {
			// 新樹中的欄位互不衝突
			_ = job.Insert([]string{rec.Application, board, field}, v, sameInt)
		}
		if err := report.Sizes.Merge(job, sameInt); err != nil {
			errs = append(errs, fmt.Errorf("sizes %s: %w", rec.Name, err))
			continue
		}

		addTotals(report.AppTotals, rec.Application, sizes)
		addTotals(report.BoardTotals, board, sizes)
	}
	return report, errs
}

func addTotals(totals map[string]map[string]int64, key string, sizes map[string]int64) {
	t, ok := totals[key]
	if !ok {
		t = make(map[string]int64, len(sizes)+1)
		totals[key] = t
	}
	for field, v := range sizes {
		t[field] += v
	}
	t["count"]++
}
