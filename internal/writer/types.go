// internal/writer/types.go
package writer

import "errors"

// Well-known control names. Other names are passed through as configured.
const (
	SettingOverflowTarget   = "overflow_target"
	CommandOverflowToTarget = "overflow_to_target"
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrUnknownCommand = errors.New("unknown command")
	ErrNegativeTarget = errors.New("target height must be >= 0")
)

// endpointClient is the exact contract the writers use.
// IMPORTANT: There must be NO other version of this interface anywhere.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
	WriteCoil(unitID uint8, addr uint16, on bool) error
}

// Plan is the fully-built control plan for one PLC.
type Plan struct {
	UnitID   uint8
	Settings map[string]uint16 // name -> first holding register of a float32
	Commands map[string]uint16 // name -> coil address

	Status *StatusPlan // nil disables the status block
}

// StatusPlan places the link status block in PLC holding registers.
type StatusPlan struct {
	UnitID     uint8
	Address    uint16
	DeviceName string
}

// Observer counts control writes by kind (setting, command, status).
type Observer interface {
	WriteSent(kind string, ok bool)
}
