// internal/schema/types.go
package schema

import (
	"fmt"
	"strings"
)

// Block identifies one PLC data block delivered per frame.
type Block uint8

const (
	DB2   Block = iota // analog input, primary (hull metrics)
	DB203              // analog input, secondary (dredging reals)
	DB4                // digital input, primary
	DB205              // digital input, secondary (status bits)
	DB20               // setting echo
)

func (b Block) String() string {
	switch b {
	case DB2:
		return "DB2"
	case DB203:
		return "DB203"
	case DB4:
		return "DB4"
	case DB205:
		return "DB205"
	case DB20:
		return "DB20"
	default:
		return fmt.Sprintf("DB?(%d)", uint8(b))
	}
}

// ParseBlock maps a block name ("DB2", "db203", ...) to a Block.
func ParseBlock(name string) (Block, bool) {
	for _, b := range []Block{DB2, DB203, DB4, DB205, DB20} {
		if strings.EqualFold(name, b.String()) {
			return b, true
		}
	}
	return 0, false
}

// Kind is the declared type of a field.
type Kind uint8

const (
	Real  Kind = iota // float32
	LReal             // float64
	Bit               // single bit of a byte
)

// Width returns the byte footprint of a kind.
func (k Kind) Width() int {
	switch k {
	case LReal:
		return 8
	case Bit:
		return 1
	default:
		return 4
	}
}

// Field locates one named quantity inside a block.
type Field struct {
	Name   string
	Block  Block
	Offset int   // byte offset
	Bit    uint8 // Kind == Bit only
	Kind   Kind
	Unit   string
}

// End is the first byte past the field.
func (f Field) End() int { return f.Offset + f.Kind.Width() }

// Side selects the port or starboard dredging system.
type Side uint8

const (
	Port Side = iota
	Starboard
)

func (s Side) String() string {
	if s == Starboard {
		return "sb"
	}
	return "ps"
}
