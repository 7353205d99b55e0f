package journal

// ============================================================================
// Journal Error Definitions
// ============================================================================

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrCorrupted indicates a line could not be decoded
	ErrCorrupted = errors.New("journal: file is corrupted")

	// ErrChecksumMismatch indicates an event whose checksum does not match its content
	ErrChecksumMismatch = errors.New("journal: checksum mismatch")

	// ErrClosed indicates the journal is closed
	ErrClosed = errors.New("journal: already closed")
)

// ChecksumError represents a checksum failure with details
type ChecksumError struct {
	Seq      uint64 // Sequence number of the failed event
	Expected uint32 // Checksum recomputed from the content
	Actual   uint32 // Checksum stored in the file
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("journal: checksum mismatch at seq=%d (expected=0x%08x, got=0x%08x)",
		e.Seq, e.Expected, e.Actual)
}

// Is lets errors.Is(err, ErrChecksumMismatch) match
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// CorruptionError represents an undecodable journal line
type CorruptionError struct {
	Line   int   // 1-based line number
	Offset int64 // Byte offset of the line in the file
	Cause  error // Underlying decode error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("journal: corrupted line %d at offset %d: %v", e.Line, e.Offset, e.Cause)
}

func (e *CorruptionError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrCorrupted) match
func (e *CorruptionError) Is(target error) bool {
	return target == ErrCorrupted
}
