// internal/config/validate.go
package config

import (
	"fmt"
	"time"

	"github.com/tamzrod/draughts-telemetry/internal/schema"
	"github.com/tamzrod/draughts-telemetry/internal/series"
	"github.com/tamzrod/draughts-telemetry/internal/status"
)

// required blocks; DB4 and DB20 are optional
var requiredBlocks = []schema.Block{schema.DB2, schema.DB203, schema.DB205}

// Validate checks configuration correctness.
// It performs declarative validation only; zero values mean "default".
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// SOURCE
	// ------------------------------------------------------------

	if cfg.PLC.Endpoint == "" {
		return fmt.Errorf("plc: endpoint is required")
	}
	if cfg.PLC.TimeoutMs < 0 || cfg.PLC.IntervalMs < 0 {
		return fmt.Errorf("plc %q: timeout_ms and interval_ms must be >= 0", cfg.PLC.ID)
	}
	for i := 0; i < len(cfg.PLC.DeviceName); i++ {
		if cfg.PLC.DeviceName[i] > 0x7F {
			return fmt.Errorf("plc %q: device_name must contain ASCII characters only", cfg.PLC.ID)
		}
	}

	// ------------------------------------------------------------
	// READ GEOMETRY
	// ------------------------------------------------------------

	type span struct {
		start uint16
		end   uint16
		name  string
	}

	// key = fc
	spans := make(map[uint8][]span)
	sizes := make(map[schema.Block]int)

	for _, b := range cfg.Blocks {
		blk, ok := schema.ParseBlock(b.Name)
		if !ok {
			return fmt.Errorf("block %q: unknown data block", b.Name)
		}
		if _, dup := sizes[blk]; dup {
			return fmt.Errorf("block %s: declared twice", blk)
		}
		fc := b.FC
		if fc == 0 {
			fc = 3
		}
		if fc != 3 && fc != 4 {
			return fmt.Errorf("block %s: fc must be 3 or 4 (got %d)", blk, b.FC)
		}
		if b.Quantity == 0 {
			return fmt.Errorf("block %s: quantity must be > 0", blk)
		}
		if uint32(b.Address)+uint32(b.Quantity) > 1<<16 {
			return fmt.Errorf("block %s: address range %d+%d exceeds 65536", blk, b.Address, b.Quantity)
		}

		start := b.Address
		end := start + b.Quantity - 1

		for _, s := range spans[fc] {
			// overlap check (inclusive)
			if !(end < s.start || start > s.end) {
				return fmt.Errorf(
					"block overlap: fc=%d %s range=%d-%d overlaps with %s range=%d-%d",
					fc, blk, start, end, s.name, s.start, s.end,
				)
			}
		}
		spans[fc] = append(spans[fc], span{start: start, end: end, name: blk.String()})
		sizes[blk] = int(b.Quantity) * 2
	}

	for _, blk := range requiredBlocks {
		if _, ok := sizes[blk]; !ok {
			return fmt.Errorf("block %s: required", blk)
		}
	}

	// ------------------------------------------------------------
	// SCHEMA vs GEOMETRY
	// ------------------------------------------------------------

	hull, ps, sb := cfg.Tables()
	if err := schema.Validate(hull, ps, sb); err != nil {
		return err
	}
	for blk, need := range schema.Extent(hull, ps, sb) {
		have, ok := sizes[blk]
		if !ok {
			// optional block not polled; its step is skipped
			continue
		}
		if have < need {
			return fmt.Errorf("block %s: %d bytes polled but schema needs %d", blk, have, need)
		}
	}

	// ------------------------------------------------------------
	// CALIBRATION
	// ------------------------------------------------------------

	r := cfg.Ranges
	for name, v := range map[string]float64{
		"dredging_speed":   r.DredgingSpeed,
		"flow_volume":      r.FlowVolume,
		"flow_speed":       r.FlowSpeed,
		"vacuum_pressure":  r.VacuumPressure,
		"drag_pull_force1": r.DragPullForce1,
		"drag_pull_force2": r.DragPullForce2,
		"hopper_height":    r.HopperHeight,
		"displacement":     r.Displacement,
		"payload":          r.Payload,
		"earthwork":        r.EarthWork,
		"capacity":         r.Capacity,
	} {
		if v < 0 {
			return fmt.Errorf("ranges.%s must be >= 0 (got %v)", name, v)
		}
	}

	// ------------------------------------------------------------
	// TIME SERIES / HISTORY
	// ------------------------------------------------------------

	if cfg.Series.Rotation != "" {
		if _, ok := series.ParseRotation(cfg.Series.Rotation); !ok {
			return fmt.Errorf("series: unknown rotation %q", cfg.Series.Rotation)
		}
	}
	if cfg.Series.WindowSec < 0 || cfg.Series.ViewSpanSec < 0 {
		return fmt.Errorf("series: window_sec and view_span_sec must be >= 0")
	}
	if cfg.Series.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Series.Timezone); err != nil {
			return fmt.Errorf("series: timezone: %w", err)
		}
	}

	if cfg.History.Enabled {
		switch cfg.History.Driver {
		case "", "sqlite3":
			if cfg.History.Path == "" {
				return fmt.Errorf("history: path is required when enabled")
			}
		case "postgres":
			if cfg.History.DSN == "" {
				return fmt.Errorf("history: dsn is required for driver postgres")
			}
		default:
			return fmt.Errorf("history: unknown driver %q", cfg.History.Driver)
		}
	}
	if cfg.History.KeepDays < 0 {
		return fmt.Errorf("history: keep_days must be >= 0")
	}

	// ------------------------------------------------------------
	// OUTPUTS / CONTROL
	// ------------------------------------------------------------

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt: broker is required when enabled")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt: qos must be 0, 1 or 2 (got %d)", cfg.MQTT.QoS)
		}
	}

	if cfg.Control.Enabled {
		if len(cfg.Control.Settings) == 0 && len(cfg.Control.Commands) == 0 {
			return fmt.Errorf("control: enabled without settings or commands")
		}
		owner := make(map[uint16]string)
		for name, addr := range cfg.Control.Settings {
			// a float setting spans two registers
			for _, a := range []uint16{addr, addr + 1} {
				if prev, ok := owner[a]; ok {
					return fmt.Errorf("control: setting %q register %d collides with %q", name, a, prev)
				}
				owner[a] = name
			}
		}
		if cfg.PLC.StatusAddress != nil {
			base := *cfg.PLC.StatusAddress
			for a, name := range owner {
				if a >= base && a < base+status.SlotsPerDevice {
					return fmt.Errorf("control: setting %q register %d inside status block at %d", name, a, base)
				}
			}
		}
	}

	return nil
}
