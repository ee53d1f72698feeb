// internal/session/mode.go
package session

import "fmt"

// Mode selects how a committed frame reaches the time series.
type Mode uint8

const (
	// Idle: no frame committed and no replay requested yet.
	Idle Mode = iota
	// Live appends each committed sample to the store.
	Live
	// Replay moves the read cursor to each frame's timestamp.
	Replay
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Live:
		return "live"
	case Replay:
		return "replay"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// MarshalText renders the mode name in JSON snapshots.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
