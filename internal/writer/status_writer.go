// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/draughts-telemetry/internal/status"
)

// StatusWriter delivers the link status block into PLC memory.
// It writes snapshots verbatim; the tracker owns the logic.
type StatusWriter struct {
	plan *StatusPlan
	cli  endpointClient
	obs  Observer

	needFull bool
	last     status.Snapshot
	nameRegs []uint16
}

// NewStatusWriter builds a status writer. It reports false when the plan
// has no status block.
func NewStatusWriter(plan Plan, cli endpointClient, obs Observer) (*StatusWriter, bool) {
	if plan.Status == nil {
		return nil, false
	}
	return &StatusWriter{
		plan:     plan.Status,
		cli:      cli,
		obs:      obs,
		needFull: true, // full re-assert on first write
		last:     status.Snapshot{Health: status.HealthUnknown},
		nameRegs: status.EncodeName(plan.Status.DeviceName),
	}, true
}

// WriteStatus delivers s. The first write, and the first write after any
// failure, re-asserts the full block including the device name; otherwise
// only changed slots are written.
func (sw *StatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.plan == nil {
		return errors.New("status writer: disabled")
	}
	if sw.cli == nil {
		return errors.New("status writer: missing client")
	}

	err := sw.write(s)
	if sw.obs != nil {
		sw.obs.WriteSent("status", err == nil)
	}
	return err
}

func (sw *StatusWriter) write(s status.Snapshot) error {
	unitID := sw.plan.UnitID
	base := sw.plan.Address

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		if err := sw.cli.WriteRegisters(unitID, base, status.Encode(s, sw.nameRegs)); err != nil {
			return fmt.Errorf("status writer: full block write failed: %w", err)
		}
		sw.needFull = false
		sw.last = s
		return nil
	}

	var errs []string

	slots := []struct {
		name string
		slot uint16
		prev *uint16
		next uint16
	}{
		{"health", status.SlotHealthCode, &sw.last.Health, s.Health},
		{"last_error", status.SlotLastErrorCode, &sw.last.LastErrorCode, s.LastErrorCode},
		{"seconds_in_error", status.SlotSecondsInError, &sw.last.SecondsInError, s.SecondsInError},
		{"frames", status.SlotFramesCommitted, &sw.last.FramesCommitted, s.FramesCommitted},
		{"mode", status.SlotMode, &sw.last.Mode, s.Mode},
	}

	for _, sl := range slots {
		if *sl.prev == sl.next {
			continue
		}
		if err := sw.cli.WriteRegisters(unitID, base+sl.slot, []uint16{sl.next}); err != nil {
			errs = append(errs, fmt.Sprintf("slot%d %s write failed: %v", sl.slot, sl.name, err))
			continue
		}
		*sl.prev = sl.next
	}

	if len(errs) > 0 {
		// partial failure: re-assert on next write
		sw.needFull = true
		return errors.New("status writer: " + strings.Join(errs, " | "))
	}
	return nil
}
