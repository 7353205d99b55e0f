package snapshot

// ============================================================================
// 職責說明：
// 1. 原子性寫入（temp file + rename），讀取端永遠不會看到寫一半的檔案
// 2. 報告產物（builds.json、stats.json ...）與狀態文件共用
// ============================================================================

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Indent 寫入 JSON 時的縮排；空字串代表壓縮輸出
type Indent string

const (
	Compact Indent = ""
	Pretty  Indent = " "
)

// WriteFile 原子性寫入任意內容，必要時建立上層目錄
//
// 寫入流程：
// 1. 寫入同目錄下的臨時檔案（.tmp）
// 2. os.Rename 原子性替換原始檔案
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", tmpPath, err)
	}
	return nil
}

// WriteJSON 將 v 序列化後原子性寫入 path
func WriteJSON(path string, v any, indent Indent) error {
	var (
		data []byte
		err  error
	)
	if indent == Compact {
		data, err = json.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", string(indent))
	}
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return WriteFile(path, data)
}
