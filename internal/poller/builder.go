// internal/poller/builder.go
package poller

import (
	"fmt"
	"io"
	"time"

	"github.com/tamzrod/draughts-telemetry/internal/config"
	"github.com/tamzrod/draughts-telemetry/internal/schema"
	pmodbus "github.com/tamzrod/draughts-telemetry/internal/poller/modbus"
)

// Build constructs a Poller and wires the Modbus client lifecycle.
// Assumes config has passed Validate and Normalize.
// The PLC may be offline at start: the first poll dials, and a dead
// connection is discarded and redialled by the factory on a later tick.
func Build(c *config.Config) (*Poller, func() error, error) {
	// client factory: ONE attempt per call
	factory := func() (Client, error) {
		return pmodbus.New(pmodbus.Config{
			Endpoint: c.PLC.Endpoint,
			UnitID:   c.PLC.UnitID,
			Timeout:  time.Duration(c.PLC.TimeoutMs) * time.Millisecond,
		})
	}

	reads := make([]ReadBlock, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		blk, ok := schema.ParseBlock(b.Name)
		if !ok {
			return nil, nil, fmt.Errorf("poller: unknown block %q", b.Name)
		}
		reads = append(reads, ReadBlock{
			Block:    blk,
			FC:       b.FC,
			Address:  b.Address,
			Quantity: b.Quantity,
		})
	}

	p, err := New(
		Config{
			UnitID:   c.PLC.ID,
			Interval: time.Duration(c.PLC.IntervalMs) * time.Millisecond,
			Reads:    reads,
		},
		nil,
		factory,
	)
	if err != nil {
		return nil, nil, err
	}

	return p, p.close, nil
}

// close releases the current connection, if any.
func (p *Poller) close() error {
	if c, ok := p.client.(io.Closer); ok {
		p.client = nil
		return c.Close()
	}
	return nil
}
