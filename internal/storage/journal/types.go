package journal

import "encoding/json"

// ============================================================================
// Journal Type Definitions
// Responsibility: Define the records appended to a run journal
// ============================================================================

// EventType defines journal event types
type EventType string

const (
	EventJob  EventType = "JOB"  // A finished job was received
	EventDone EventType = "DONE" // The run signalled completion
)

// Event represents one journal line
type Event struct {
	Seq       uint64          `json:"seq"`               // Monotonically increasing within a file
	Type      EventType       `json:"type"`              // Event type
	Session   string          `json:"session,omitempty"` // Reporter session that wrote the event
	Timestamp int64           `json:"timestamp"`         // Unix millisecond timestamp
	Checksum  uint32          `json:"checksum"`          // CRC32 over type, seq and job
	Job       json.RawMessage `json:"job,omitempty"`     // Raw job as received
}

// EventHandler is called for each event during Replay.
// Returning an error stops the replay.
type EventHandler func(event Event) error
