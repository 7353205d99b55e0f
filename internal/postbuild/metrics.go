package postbuild

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ChuLiYu/murdock-reporter/internal/tree"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

func sameJSON(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

// fromJSON 將 JSON 物件轉成樹；物件成為分支，其他值成為葉節點
func fromJSON(data []byte) (*tree.Node[json.RawMessage], error) {
	node := tree.NewBranch[json.RawMessage]()
	if err := insertJSON(node, nil, data); err != nil {
		return nil, err
	}
	return node, nil
}

func insertJSON(node *tree.Node[json.RawMessage], prefix []string, data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for key, raw := range obj {
		path := append(append([]string(nil), prefix...), key)
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			if err := insertJSON(node, path, trimmed); err != nil {
				return err
			}
			continue
		}
		if err := node.Insert(path, json.RawMessage(trimmed), sameJSON); err != nil {
			return err
		}
	}
	return nil
}

// ExtractMetrics merges every JSON object line of a job log.
// Lines that are not JSON are ignored; conflicting lines are skipped.
func ExtractMetrics(output string) (*tree.Node[json.RawMessage], []error) {
	metrics := tree.NewBranch[json.RawMessage]()
	var errs []error
	for _, line := range strings.Split(output, "\n") {
		if !strings.HasPrefix(line, "{") {
			continue
		}
		node, err := fromJSON([]byte(line))
		if err != nil {
			continue
		}
		if err := metrics.Merge(node, sameJSON); err != nil {
			errs = append(errs, err)
		}
	}
	return metrics, errs
}

// Metrics merges the metrics of passing builds and tests into
// application → board → metrics.
func Metrics(records []types.JobRecord) (*tree.Node[json.RawMessage], []error) {
	merged := tree.NewBranch[json.RawMessage]()
	var errs []error

	for _, rec := range records {
		if !rec.Status || !rec.Structured() {
			continue
		}
		if rec.Type != types.TypeBuilds && rec.Type != types.TypeTests {
			continue
		}
		metrics, lineErrs := ExtractMetrics(rec.Output)
		for _, err := range lineErrs {
			errs = append(errs, fmt.Errorf("metrics %s: %w", rec.Name, err))
		}
		if metrics.Len() == 0 {
			continue
		}

		job := tree.NewBranch[json.RawMessage]()
		prefix := []string{rec.Application, boardKey(rec)}
		metrics.Walk(func(path []string, v json.RawMessage) {
			_ = job.Insert(append(append([]string(nil), prefix...), path...), v, sameJSON)
		})
		if err := merged.Merge(job, sameJSON); err != nil {
			errs = append(errs, fmt.Errorf("metrics %s: %w", rec.Name, err))
		}
	}
	return merged, errs
}
