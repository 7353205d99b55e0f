// Package types 定義了 murdock-reporter 系統中使用的核心領域模型
package types

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ============================================================================
// 原始任務結果（由佇列或 result.json 提供）
// ============================================================================

// RawJob 單一已完成任務的原始結果
type RawJob struct {
	JobID  string    `json:"job_id,omitempty"` // 佇列中的任務 ID（可選）
	Result JobResult `json:"result"`           // 執行結果
}

// JobResult 任務執行結果
type JobResult struct {
	Status  StatusCode `json:"status"`  // 狀態碼：0、"0"、"pass" 代表成功
	Worker  string     `json:"worker"`  // 執行此任務的 worker 名稱
	Runtime Seconds    `json:"runtime"` // 執行時間（秒）
	Output  string     `json:"output"`  // 原始輸出文字
	Body    JobBody    `json:"body"`    // 任務內容
}

// JobBody 任務內容，目前只關心命令字串
type JobBody struct {
	Command string `json:"command"`
}

// StatusCode 原始狀態值，可能是數字或字串
type StatusCode struct {
	raw      string // 原始表示（數字保留字面值，字串去除引號）
	isString bool
}

// NumericStatus 建立數字型狀態碼
func NumericStatus(code int) StatusCode {
	return StatusCode{raw: strconv.Itoa(code)}
}

// TextStatus 建立字串型狀態碼
func TextStatus(s string) StatusCode {
	return StatusCode{raw: s, isString: true}
}

// Passed 判斷狀態是否為成功哨兵值（0、"0"、"pass"）
func (s StatusCode) Passed() bool {
	if s.isString {
		return s.raw == "0" || s.raw == "pass"
	}
	if s.raw == "" {
		return false
	}
	f, err := strconv.ParseFloat(s.raw, 64)
	return err == nil && f == 0
}

// String 回傳原始表示
func (s StatusCode) String() string {
	return s.raw
}

// UnmarshalJSON 接受數字、字串或其他 JSON 值（其他值一律視為失敗）
func (s *StatusCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = StatusCode{raw: str, isString: true}
		return nil
	}
	*s = StatusCode{raw: string(data)}
	return nil
}

// MarshalJSON 保留原始型別輸出
func (s StatusCode) MarshalJSON() ([]byte, error) {
	if s.isString {
		return json.Marshal(s.raw)
	}
	if s.raw == "" {
		return []byte("null"), nil
	}
	return []byte(s.raw), nil
}

// Seconds 執行時間（秒），接受數字或數字字串
type Seconds float64

// UnmarshalJSON 無法解析的值視為 0，確保解析永不失敗
func (s *Seconds) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		text = strings.TrimSpace(str)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f < 0 {
		f = 0
	}
	*s = Seconds(f)
	return nil
}

// ============================================================================
// 解析後的任務紀錄
// ============================================================================

// JobType 任務類型
type JobType string

// 定義任務類型常數；其他類型以原始字串保存
const (
	TypeBuilds JobType = "builds" // 編譯類任務
	TypeTests  JobType = "tests"  // 測試類任務
)

// JobRecord 由原始結果解析出的不可變任務紀錄
// 所有欄位皆為可比較型別，兩筆紀錄可直接以 == 比較
type JobRecord struct {
	ID      string  `json:"id,omitempty"`
	Status  bool    `json:"status"`  // 是否成功
	Worker  string  `json:"worker"`  // worker 名稱
	Runtime float64 `json:"runtime"` // 執行時間（秒）
	Output  string  `json:"-"`       // 原始輸出，不寫入彙總檔
	Name    string  `json:"name"`    // 命令（去除入口點）以 "/" 串接
	Type    JobType `json:"type"`    // builds、tests 或其他

	// 結構化欄位：三者同時存在或同時為空
	Application string `json:"application,omitempty"`
	Target      string `json:"target,omitempty"`
	Toolchain   string `json:"toolchain,omitempty"`
}

// Structured 是否符合 <entrypoint> <type> <application> <target>:<toolchain> 格式
func (r JobRecord) Structured() bool {
	return r.Application != ""
}

// ============================================================================
// 佇列事件與狀態更新
// ============================================================================

// ProgressFields 會被轉發到狀態端點的進度欄位
var ProgressFields = []string{"total", "passed", "failed", "status", "eta"}

// StatusDone 代表整個執行結束的狀態標記
const StatusDone = "done"

// QueueEvent 佇列等待原語回傳的單一元素
// 可能攜帶任務結果、進度欄位，或兩者皆有
type QueueEvent struct {
	Job    *RawJob                    // 任務結果（可選）
	Fields map[string]json.RawMessage // 其他所有欄位
}

// UnmarshalJSON 將 "job" 欄位拆出，其餘欄位原樣保存
func (e *QueueEvent) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	e.Job = nil
	if raw, ok := m["job"]; ok && string(bytes.TrimSpace(raw)) != "null" {
		var job RawJob
		if err := json.Unmarshal(raw, &job); err != nil {
			return err
		}
		e.Job = &job
	}
	delete(m, "job")
	e.Fields = m
	return nil
}

// MarshalJSON 與 UnmarshalJSON 對稱
func (e QueueEvent) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		m[k] = v
	}
	if e.Job != nil {
		m["job"] = e.Job
	}
	return json.Marshal(m)
}

// Status 回傳 "status" 欄位的字串值（不存在或非字串時為空）
func (e QueueEvent) Status() string {
	raw, ok := e.Fields["status"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// FailedJob 狀態更新中的失敗任務項目
type FailedJob struct {
	Name string `json:"name"`
	Href string `json:"href,omitempty"`
}

// StatusUpdate 發佈到狀態端點的文件
type StatusUpdate struct {
	Total        json.RawMessage `json:"total,omitempty"`
	Passed       json.RawMessage `json:"passed,omitempty"`
	Failed       json.RawMessage `json:"failed,omitempty"`
	Status       json.RawMessage `json:"status,omitempty"`
	ETA          json.RawMessage `json:"eta,omitempty"`
	FailedJobs   []FailedJob     `json:"failed_jobs,omitempty"`
	FailedBuilds []FailedJob     `json:"failed_builds,omitempty"`
	FailedTests  []FailedJob     `json:"failed_tests,omitempty"`
}

// SetField 設定進度欄位；未知欄位會被忽略
func (u *StatusUpdate) SetField(key string, raw json.RawMessage) {
	switch key {
	case "total":
		u.Total = raw
	case "passed":
		u.Passed = raw
	case "failed":
		u.Failed = raw
	case "status":
		u.Status = raw
	case "eta":
		u.ETA = raw
	}
}

// StatusText 將純文字狀態編碼為 JSON 字串
func StatusText(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
