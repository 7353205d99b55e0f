package worker

import (
	"context"
	"time"
)

// Task 代表要執行的渲染任務
type Task struct {
	ID      string                          // 任務識別碼（例如 "builds/my_app"）
	Run     func(ctx context.Context) error // 實際工作
	Timeout time.Duration                   // 執行超時時間；0 代表不限制
}

// Result 代表任務執行結果
type Result struct {
	TaskID   string        // 任務 ID
	Success  bool          // 執行是否成功
	Error    error         // 錯誤訊息（如果有）
	Duration time.Duration // 實際執行時間
}
