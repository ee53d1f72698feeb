// internal/status/snapshot.go
package status

// Snapshot is the link state delivered to the status writer and metrics.
// It carries no logic.
type Snapshot struct {
	Health          uint16
	LastErrorCode   uint16
	SecondsInError  uint16
	FramesCommitted uint16
	Mode            uint16
}

// Up reports whether the PLC link is healthy.
func (s Snapshot) Up() bool { return s.Health == HealthOK }
