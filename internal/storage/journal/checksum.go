package journal

// ============================================================================
// 校驗和計算
// 職責：計算與驗證日誌事件的 CRC32 校驗和
// ============================================================================

import (
	"bytes"
	"encoding/json"
	"hash/crc32"
	"strconv"
)

// CalculateChecksum 計算事件的 CRC32 校驗和
//
// 涵蓋 Type + Seq + 任務 JSON（壓縮後）
// 不包含 Timestamp 與 Session
func CalculateChecksum(eventType EventType, seq uint64, job []byte) uint32 {
	h := crc32.NewIEEE()
	h.Write([]byte(eventType))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatUint(seq, 10)))
	h.Write([]byte{'|'})
	h.Write(compact(job))
	return h.Sum32()
}

// VerifyChecksum 驗證事件的校驗和是否正確
func VerifyChecksum(event Event) error {
	expected := CalculateChecksum(event.Type, event.Seq, event.Job)
	if event.Checksum != expected {
		return &ChecksumError{Seq: event.Seq, Expected: expected, Actual: event.Checksum}
	}
	return nil
}

func compact(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return data
	}
	return buf.Bytes()
}
