// internal/poller/poller.go
package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/draughts-telemetry/internal/schema"
)

// Client abstracts the register reads the poller needs.
// Responses are raw big-endian register bytes.
type Client interface {
	ReadHoldingRegisters(addr, qty uint16) ([]byte, error) // FC 3
	ReadInputRegisters(addr, qty uint16) ([]byte, error)   // FC 4
}

// Factory dials a new client. One attempt per call.
type Factory func() (Client, error)

// Config is the minimal runtime config the poller needs.
type Config struct {
	UnitID   string
	Interval time.Duration
	Reads    []ReadBlock
}

// Poller is a dumb, clock-driven reader.
type Poller struct {
	cfg     Config
	client  Client
	factory Factory
	now     func() time.Time
}

// New creates a poller with immutable config.
// client may be nil when factory is set; it is dialled on the first poll.
func New(cfg Config, client Client, factory Factory) (*Poller, error) {
	if cfg.UnitID == "" {
		return nil, errors.New("poller: unit id required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if len(cfg.Reads) == 0 {
		return nil, errors.New("poller: at least one read block required")
	}
	if client == nil && factory == nil {
		return nil, errors.New("poller: client or factory required")
	}
	seen := make(map[schema.Block]bool, len(cfg.Reads))
	for _, rb := range cfg.Reads {
		if seen[rb.Block] {
			return nil, fmt.Errorf("poller: block %s read twice", rb.Block)
		}
		seen[rb.Block] = true
		if rb.Quantity == 0 {
			return nil, fmt.Errorf("poller: block %s has zero quantity", rb.Block)
		}
	}
	return &Poller{cfg: cfg, client: client, factory: factory, now: time.Now}, nil
}

// PollOnce performs exactly one poll cycle.
// All-or-nothing: any failure aborts the cycle and no block is returned.
// A transport failure discards the client; the factory redials on a later cycle.
func (p *Poller) PollOnce() PollResult {
	res := PollResult{
		UnitID: p.cfg.UnitID,
		At:     p.now(),
	}

	if p.client == nil {
		c, err := p.factory()
		if err != nil {
			res.Err = fmt.Errorf("poller: dial: %w", err)
			return res
		}
		p.client = c
	}

	blocks := make(map[schema.Block][]byte, len(p.cfg.Reads))

	for _, rb := range p.cfg.Reads {
		buf, err := p.readBlock(rb)
		if err != nil {
			res.Err = fmt.Errorf("poller: %s fc=%d addr=%d qty=%d: %w", rb.Block, rb.FC, rb.Address, rb.Quantity, err)

			var mbErr *modbus.ModbusError
			if errors.As(err, &mbErr) {
				res.RawErrorCode = uint16(mbErr.ExceptionCode)
			} else {
				p.discard()
			}
			return res
		}
		blocks[rb.Block] = buf
	}

	// Commit only if all reads succeeded
	res.Blocks = blocks
	return res
}

// readBlock reads one block, split into requests the protocol accepts.
func (p *Poller) readBlock(rb ReadBlock) ([]byte, error) {
	read := p.client.ReadHoldingRegisters
	switch rb.FC {
	case 3:
	case 4:
		read = p.client.ReadInputRegisters
	default:
		return nil, fmt.Errorf("unsupported function code %d", rb.FC)
	}

	out := make([]byte, 0, int(rb.Quantity)*2)
	for done := uint16(0); done < rb.Quantity; {
		n := rb.Quantity - done
		if n > MaxRegistersPerRead {
			n = MaxRegistersPerRead
		}
		b, err := read(rb.Address+done, n)
		if err != nil {
			return nil, err
		}
		if len(b) != int(n)*2 {
			return nil, fmt.Errorf("short response: got %d bytes want %d", len(b), int(n)*2)
		}
		out = append(out, b...)
		done += n
	}
	return out, nil
}

func (p *Poller) discard() {
	if p.factory == nil {
		return
	}
	_ = p.close()
	p.client = nil
}
