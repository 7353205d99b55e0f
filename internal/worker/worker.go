// ============================================================================
// Worker - 任務執行單元
// ============================================================================
//
// Package: internal/worker
// 文件: worker.go
// 功能: 執行渲染任務，每個 Worker 在獨立的 goroutine 中運行
//
// 運作流程:
//   1. 從 taskCh 接收任務（阻塞等待）
//   2. 以任務自己的 context 執行 task.Run
//   3. 將結果送到 resultCh
//   4. 重複直到 taskCh 關閉
//
// 任務 panic 會轉成 ErrTaskPanic 結果，Worker 繼續處理其餘任務。
//
// ============================================================================

package worker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTaskPanic 包裝任務執行時的 panic
var ErrTaskPanic = errors.New("worker: task panicked")

// Worker 代表一個執行單元
type Worker struct {
	id       int // Worker 唯一識別碼
	ctx      context.Context
	taskCh   <-chan Task   // 任務通道（唯讀）
	resultCh chan<- Result // 結果通道（唯寫）
}

// newWorker 建立新的 Worker
func newWorker(ctx context.Context, id int, taskCh <-chan Task, resultCh chan<- Result) *Worker {
	return &Worker{
		id:       id,
		ctx:      ctx,
		taskCh:   taskCh,
		resultCh: resultCh,
	}
}

// Run 是 Worker 的主迴圈
// 結果以阻塞方式送出，呼叫端必須取完 resultCh。
func (w *Worker) Run() {
	for task := range w.taskCh {
		start := time.Now()
		err := w.execute(task)
		w.resultCh <- Result{
			TaskID:   task.ID,
			Success:  err == nil,
			Error:    err,
			Duration: time.Since(start),
		}
	}
}

// execute 以獨立的超時與 panic 隔離執行單一任務
func (w *Worker) execute(task Task) (err error) {
	ctx := w.ctx
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrTaskPanic, task.ID, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if task.Run == nil {
		return fmt.Errorf("worker: task %s has no Run function", task.ID)
	}
	return task.Run(ctx)
}
