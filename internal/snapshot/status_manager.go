package snapshot

// ============================================================================
// 狀態文件管理
// 職責：保存最後一次發佈的狀態（prstatus.json），供除錯與重新發佈
// ============================================================================

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// ============================================================================
// 錯誤定義
// ============================================================================

var (
	ErrCorruptedSnapshot = errors.New("snapshot file is corrupted")
	ErrSnapshotNotFound  = errors.New("snapshot file not found")
)

// Manager 狀態文件管理器
type Manager struct {
	path string     // 檔案路徑
	mu   sync.Mutex // 保護檔案操作
}

// NewManager 建立管理器實例
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Write 原子性寫入狀態文件
func (m *Manager) Write(status types.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return WriteJSON(m.path, status, Pretty)
}

// Load 載入狀態文件
//
// 檔案不存在時回傳 ErrSnapshotNotFound
func (m *Manager) Load() (types.StatusUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var status types.StatusUpdate
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return status, ErrSnapshotNotFound
		}
		return status, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return status, fmt.Errorf("%w: %v", ErrCorruptedSnapshot, err)
	}
	return status, nil
}

// Exists 檢查檔案是否存在
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// GetPath 取得檔案路徑
func (m *Manager) GetPath() string {
	return m.path
}
