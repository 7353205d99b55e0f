package journal

// ============================================================================
// Journal 核心實作
// 職責：
// 1. 追加收到的任務到 JSON Lines 檔案（append-only）
// 2. 重放檔案以重建報告
// 3. 批次寫入，Close/Flush 時同步到磁碟
// ============================================================================

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// maxLineSize 單行上限；任務輸出可能很大
const maxLineSize = 64 << 20

// FileInterface 定義檔案操作所需的方法
type FileInterface interface {
	Write(p []byte) (n int, err error)
	Sync() error
	Close() error
}

// Journal 一次執行收到的任務日誌
type Journal struct {
	mu           sync.Mutex
	file         FileInterface
	encoder      *json.Encoder
	path         string
	session      string
	seq          uint64
	syncOnAppend bool
	closed       bool

	buffer        []Event
	bufferSize    int
	lastFlushTime time.Time
	flushInterval time.Duration
}

// Open 建立或開啟日誌
//
// 行為：
// - 檔案不存在時建立，seq 從 0 開始
// - 檔案已存在時讀取最後一個事件的 seq 並繼續
// - 以 O_APPEND 開啟，不覆蓋既有內容
func Open(path, session string, syncOnAppend bool) (*Journal, error) {
	// 最後一行可能在中斷時寫了一半，沿用最後一個完整事件的 seq
	var seq uint64
	last, err := LastEvent(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) && !errors.Is(err, ErrCorrupted) {
		return nil, err
	}
	if last != nil {
		seq = last.Seq
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	return &Journal{
		file:          file,
		encoder:       json.NewEncoder(file),
		path:          path,
		session:       session,
		seq:           seq,
		syncOnAppend:  syncOnAppend,
		buffer:        make([]Event, 0, 64),
		bufferSize:    64,
		lastFlushTime: time.Now(),
		flushInterval: time.Second,
	}, nil
}

// Append 追加一個事件
//
// job 可為 nil（例如 EventDone）。
// 緩衝區滿、超過 flushInterval、force 或 syncOnAppend 時寫入檔案。
func (j *Journal) Append(eventType EventType, job *types.RawJob, force bool) error {
	var payload []byte
	if job != nil {
		var err error
		payload, err = json.Marshal(job)
		if err != nil {
			return fmt.Errorf("journal: marshal job: %w", err)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	j.seq++
	event := Event{
		Seq:       j.seq,
		Type:      eventType,
		Session:   j.session,
		Timestamp: time.Now().UnixMilli(),
		Job:       payload,
	}
	event.Checksum = CalculateChecksum(eventType, j.seq, payload)
	j.buffer = append(j.buffer, event)

	if force || j.syncOnAppend || len(j.buffer) >= j.bufferSize || time.Since(j.lastFlushTime) > j.flushInterval {
		return j.flushLocked()
	}
	return nil
}

// Flush 將緩衝的事件寫入並同步到磁碟
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	return j.flushLocked()
}

// Close 寫入剩餘事件並關閉檔案；關閉後不可再使用
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	flushErr := j.flushLocked()
	if err := j.file.Close(); err != nil {
		return err
	}
	return flushErr
}

// LastSeq 目前的事件序號
func (j *Journal) LastSeq() uint64 {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Path 日誌檔案路徑
func (j *Journal) Path() string { return j.path }

// flushLocked 呼叫者必須持有 j.mu
func (j *Journal) flushLocked() error {
	for _, event := range j.buffer {
		if err := j.encoder.Encode(event); err != nil {
			return fmt.Errorf("journal: write seq=%d: %w", event.Seq, err)
		}
	}
	j.buffer = j.buffer[:0]
	j.lastFlushTime = time.Now()
	return j.file.Sync()
}

// ============================================================================
// 讀取
// ============================================================================

// Replay 依序重放檔案中的所有事件
//
// - 空行略過
// - 無法解析的行回傳 *CorruptionError
// - 校驗和錯誤回傳 *ChecksumError
// - handler 回傳錯誤時立即停止
func Replay(path string, handler EventHandler) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return replay(file, handler)
}

func replay(r io.Reader, handler EventHandler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		line   int
		offset int64
	)
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		start := offset
		offset += int64(len(raw)) + 1

		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return &CorruptionError{Line: line, Offset: start, Cause: err}
		}
		if err := VerifyChecksum(event); err != nil {
			return err
		}
		if err := handler(event); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return &CorruptionError{Line: line + 1, Offset: offset, Cause: err}
	}
	return nil
}

// ReplayJobs 只重放任務事件並解碼成 RawJob
func ReplayJobs(path string, fn func(job types.RawJob) error) error {
	return Replay(path, func(event Event) error {
		if event.Type != EventJob || len(event.Job) == 0 {
			return nil
		}
		var job types.RawJob
		if err := json.Unmarshal(event.Job, &job); err != nil {
			return fmt.Errorf("journal: decode job at seq=%d: %w", event.Seq, err)
		}
		return fn(job)
	})
}

// LastEvent 從檔案讀取最後一個完整事件；檔案為空時回傳 nil
// 遇到損壞時同時回傳損壞前的最後一個事件與錯誤
func LastEvent(path string) (*Event, error) {
	var last *Event
	err := Replay(path, func(event Event) error {
		e := event
		last = &e
		return nil
	})
	return last, err
}

// CountEvents 計算檔案中的事件總數
func CountEvents(path string) (int, error) {
	n := 0
	err := Replay(path, func(Event) error {
		n++
		return nil
	})
	return n, err
}
