// internal/writer/control.go
package writer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/log"
)

// Control forwards operator settings and commands to the PLC.
// Pass-through only: values are not interpreted beyond encoding.
type Control struct {
	plan Plan
	cli  endpointClient
	log  *log.Logger
	obs  Observer
}

// NewControl builds a control writer. obs may be nil.
func NewControl(plan Plan, cli endpointClient, logger *log.Logger, obs Observer) (*Control, error) {
	if cli == nil {
		return nil, errors.New("control: client required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Control{plan: plan, cli: cli, log: logger, obs: obs}, nil
}

// SendSetting writes value as a big-endian float32 into the two registers
// of the named setting.
func (c *Control) SendSetting(name string, value float32) error {
	addr, ok := c.plan.Settings[name]
	if !ok {
		return fmt.Errorf("control: setting %q: %w", name, ErrUnknownSetting)
	}

	bits := math.Float32bits(value)
	regs := []uint16{uint16(bits >> 16), uint16(bits)}

	err := c.cli.WriteRegisters(c.plan.UnitID, addr, regs)
	c.observe("setting", err == nil)
	if err != nil {
		return fmt.Errorf("control: setting %q unit=%d addr=%d: %w", name, c.plan.UnitID, addr, err)
	}

	c.log.Info("setting sent", "name", name, "value", value, "addr", addr)
	return nil
}

// SendCommand pulses the named command coil: on, then off.
func (c *Control) SendCommand(name string) error {
	addr, ok := c.plan.Commands[name]
	if !ok {
		return fmt.Errorf("control: command %q: %w", name, ErrUnknownCommand)
	}

	var errs []string
	if err := c.cli.WriteCoil(c.plan.UnitID, addr, true); err != nil {
		errs = append(errs, fmt.Sprintf("set: %v", err))
	} else if err := c.cli.WriteCoil(c.plan.UnitID, addr, false); err != nil {
		// the PLC saw the edge; the coil stays set until the next pulse
		errs = append(errs, fmt.Sprintf("release: %v", err))
	}

	c.observe("command", len(errs) == 0)
	if len(errs) > 0 {
		return fmt.Errorf("control: command %q unit=%d coil=%d: %s", name, c.plan.UnitID, addr, strings.Join(errs, " | "))
	}

	c.log.Info("command sent", "name", name, "coil", addr)
	return nil
}

// SetOverflowTarget sends the overflow pipe target height, then the
// move-to-target command. Negative heights are refused before any write.
func (c *Control) SetOverflowTarget(height float64) error {
	if height < 0 || math.IsNaN(height) {
		return fmt.Errorf("control: overflow target %v: %w", height, ErrNegativeTarget)
	}
	if err := c.SendSetting(SettingOverflowTarget, float32(height)); err != nil {
		return err
	}
	return c.SendCommand(CommandOverflowToTarget)
}

func (c *Control) observe(kind string, ok bool) {
	if c.obs != nil {
		c.obs.WriteSent(kind, ok)
	}
}
