package report

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ChuLiYu/murdock-reporter/internal/aggregate"
	"github.com/ChuLiYu/murdock-reporter/internal/output"
	"github.com/ChuLiYu/murdock-reporter/internal/snapshot"
	"github.com/ChuLiYu/murdock-reporter/internal/worker"
)

// RenderApplications writes output/<type>/<application>/app.json for every
// application using a worker pool and returns the failures.
//
// Each task owns one application's directory; the snapshot is only read.
func RenderApplications(ctx context.Context, s *aggregate.Snapshot, opts Options) []error {
	workers := opts.RenderWorkers
	if workers <= 0 {
		workers = 1
	}

	var tasks []worker.Task
	for _, cat := range []*aggregate.Category{s.Builds, s.Tests} {
		for _, name := range cat.Applications() {
			app, _ := cat.App(name)
			tasks = append(tasks, appTask(opts.Dir, cat, name, app))
		}
	}

	var failed []error
	for _, res := range worker.RunAll(ctx, workers, tasks) {
		opts.Metrics.RecordRender(res.Error)
		if res.Error != nil {
			failed = append(failed, fmt.Errorf("%s: %w", res.TaskID, res.Error))
		}
	}
	return failed
}

func appTask(root string, cat *aggregate.Category, name string, app *aggregate.AppResults) worker.Task {
	id := string(cat.Type) + "/" + name
	data := AppData{Jobs: app.Jobs, Failures: app.Failures}
	return worker.Task{
		ID: id,
		Run: func(ctx context.Context) error {
			dir, err := output.AppDir(cat.Type, name)
			if err != nil {
				return err
			}
			return snapshot.WriteJSON(filepath.Join(root, filepath.FromSlash(dir), AppFile), data, snapshot.Compact)
		},
	}
}
