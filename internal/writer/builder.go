// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	"github.com/tamzrod/draughts-telemetry/internal/config"
	wmodbus "github.com/tamzrod/draughts-telemetry/internal/writer/modbus"
)

// BuildPlan converts the control and status sections into a Plan.
// Assumes config has passed Validate and Normalize.
func BuildPlan(c *config.Config) (Plan, error) {
	if c == nil {
		return Plan{}, errors.New("writer: nil config")
	}

	unitID := c.PLC.UnitID
	if c.Control.UnitID != nil {
		unitID = *c.Control.UnitID
	}

	plan := Plan{UnitID: unitID}

	if c.Control.Enabled {
		plan.Settings = make(map[string]uint16, len(c.Control.Settings))
		for name, addr := range c.Control.Settings {
			plan.Settings[name] = addr
		}
		plan.Commands = make(map[string]uint16, len(c.Control.Commands))
		for name, addr := range c.Control.Commands {
			plan.Commands[name] = addr
		}
	}

	if c.PLC.StatusAddress != nil {
		plan.Status = &StatusPlan{
			UnitID:     c.PLC.UnitID,
			Address:    *c.PLC.StatusAddress,
			DeviceName: c.PLC.DeviceName,
		}
	}

	return plan, nil
}

// Enabled reports whether the plan needs a write connection at all.
func (p Plan) Enabled() bool {
	return len(p.Settings) > 0 || len(p.Commands) > 0 || p.Status != nil
}

// BuildClient creates the write connection. It dials lazily on first use.
func BuildClient(c *config.Config) (*wmodbus.EndpointClient, error) {
	return wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: c.Control.Endpoint,
		Timeout:  time.Duration(c.Control.TimeoutMs) * time.Millisecond,
	})
}
