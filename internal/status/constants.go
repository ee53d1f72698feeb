// internal/status/constants.go
package status

// Link status block layout written back into PLC holding registers.
// The layout is read by the PLC program and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of registers in the status block.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

const (
	SlotHealthCode     = 0
	SlotLastErrorCode  = 1
	SlotSecondsInError = 2

	// SlotFramesCommitted holds the low 16 bits of the committed frame counter.
	SlotFramesCommitted = 3
	// SlotMode holds the session mode (0 idle, 1 live, 2 replay).
	SlotMode = 4
)

// Slots 5..10 are reserved and written as zero.

// ---- DEVICE NAME ----

// The device name is always placed at the END of the status block,
// two ASCII characters per register.
const (
	SlotDeviceNameStart = 11
	SlotDeviceNameSlots = 8
	SlotDeviceNameEnd   = SlotDeviceNameStart + SlotDeviceNameSlots - 1

	DeviceNameMaxChars = SlotDeviceNameSlots * 2
)

// ---- HEALTH CODES ----

const (
	HealthUnknown uint16 = 0 // boot, no poll completed yet
	HealthOK      uint16 = 1
	HealthError   uint16 = 2
	HealthStale   uint16 = 3 // last good poll is older than the stale limit
)

// HealthName returns the lowercase name of a health code.
func HealthName(h uint16) string {
	switch h {
	case HealthUnknown:
		return "unknown"
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	default:
		return "invalid"
	}
}
