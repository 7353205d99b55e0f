// ============================================================================
// Render Worker Pool - 並發任務執行器
// ============================================================================
//
// Package: internal/worker
// 文件: worker_pool.go
// 功能: 管理多個 Worker goroutine，用於平行產生每個應用程式的輸出檔
//
// 設計模式:
//   1. 固定數量的 Worker goroutine 持續運行
//   2. 通過共享的任務 channel 分發任務
//   3. 通過結果 channel 收集執行結果
//
// 架構組件:
//   ┌─────────────┐
//   │  Reporter   │ --Submit()--> taskCh
//   └─────────────┘
//         ↑
//   ReceiveResult()
//         ↑
//   ┌─────────────┐
//   │   Pool      │
//   │  ┌────────┐ │
//   │  │Worker 1│←── taskCh
//   │  │Worker 2│←── taskCh   ──→ resultCh
//   │  └────────┘ │
//   └─────────────┘
//
// 每個任務只處理自己的應用程式，任務之間沒有共享的可變狀態。
// 一個任務失敗（或 panic）不影響其他任務。
//
// ============================================================================

package worker

import (
	"context"
	"errors"
	"sync"
)

// ============================================================================
// 錯誤定義
// ============================================================================

var (
	// ErrPoolClosed 表示當前 Pool 已關閉，無法提交新任務
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrPoolNotStarted 表示 Pool 尚未啟動，無法提交任務
	ErrPoolNotStarted = errors.New("worker pool not started")
	// ErrPoolStarted 表示 Pool 已啟動
	ErrPoolStarted = errors.New("worker pool already started")
)

// ============================================================================
// 資料結構定義
// ============================================================================

// Pool 代表 Worker 池
type Pool struct {
	workers  []*Worker      // 所有啟動的 Worker
	taskCh   chan Task      // 任務通道
	resultCh chan Result    // 結果通道
	stopCh   chan struct{}  // 停止訊號
	wg       sync.WaitGroup // 等待所有 Worker 完成
	started  bool
	stopped  bool
	mu       sync.Mutex // 保護 started 和 stopped
}

// ============================================================================
// 核心方法實作
// ============================================================================

// NewPool 建立新的 Worker Pool
//   - bufferSize: 任務和結果通道的緩衝大小
func NewPool(bufferSize int) *Pool {
	return &Pool{
		workers:  make([]*Worker, 0),
		taskCh:   make(chan Task, bufferSize),
		resultCh: make(chan Result, bufferSize),
		stopCh:   make(chan struct{}),
	}
}

// Start 啟動指定數量的 Worker；ctx 取消後尚未執行的任務直接回傳 ctx.Err()
func (p *Pool) Start(ctx context.Context, workerCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolStarted
	}
	if workerCount < 1 {
		workerCount = 1
	}

	for i := 0; i < workerCount; i++ {
		w := newWorker(ctx, i, p.taskCh, p.resultCh)
		p.workers = append(p.workers, w)

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run()
		}(w)
	}

	p.started = true
	return nil
}

// Submit 提交任務到 Worker Pool
//
// Submit 與 Stop 之間存在已知的良性競爭：通過 stopped 檢查後 Stop 才關閉
// taskCh 時，select 會先看到 stopCh 關閉並回傳 ErrPoolClosed。
// 呼叫端應在所有 Submit 返回後才呼叫 Stop。
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrPoolNotStarted
	}
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	taskCh := p.taskCh
	stopCh := p.stopCh
	p.mu.Unlock()

	select {
	case taskCh <- task:
		return nil
	case <-stopCh:
		return ErrPoolClosed
	}
}

// ReceiveResult 從結果通道接收執行結果
func (p *Pool) ReceiveResult() (Result, error) {
	select {
	case result, ok := <-p.resultCh:
		if !ok {
			return Result{}, ErrPoolClosed
		}
		return result, nil
	case <-p.stopCh:
		return Result{}, ErrPoolClosed
	}
}

// Stop 優雅地關閉 Worker Pool
//  1. 設定 stopped 標誌
//  2. 關閉 stopCh 與 taskCh
//  3. 等待所有 Worker 完成當前任務
//  4. 關閉 resultCh
//
// Worker 以阻塞方式送出結果，Stop 前必須先取完所有結果。
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopCh)
	close(p.taskCh)

	p.wg.Wait()

	close(p.resultCh)
}

// GetWorkerCount 返回當前 Worker 數量
func (p *Pool) GetWorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// IsStarted 檢查 Pool 是否已啟動
func (p *Pool) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// ============================================================================
// 一次性執行
// ============================================================================

// RunAll 以 workerCount 個 Worker 執行所有任務並回傳每個任務的結果
//
// 結果順序與 tasks 相同；個別任務失敗不影響其他任務。
func RunAll(ctx context.Context, workerCount int, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	pool := NewPool(len(tasks))
	if err := pool.Start(ctx, workerCount); err != nil {
		for i, task := range tasks {
			results[i] = Result{TaskID: task.ID, Error: err}
		}
		return results
	}
	defer pool.Stop()

	index := make(map[string][]int, len(tasks))
	for i, task := range tasks {
		index[task.ID] = append(index[task.ID], i)
		if err := pool.Submit(task); err != nil {
			results[i] = Result{TaskID: task.ID, Error: err}
			index[task.ID] = index[task.ID][:len(index[task.ID])-1]
		}
	}

	pending := 0
	for _, slots := range index {
		pending += len(slots)
	}
	for ; pending > 0; pending-- {
		res, err := pool.ReceiveResult()
		if err != nil {
			break
		}
		slots := index[res.TaskID]
		if len(slots) == 0 {
			continue
		}
		results[slots[0]] = res
		index[res.TaskID] = slots[1:]
	}
	return results
}
