// internal/schema/schema.go
package schema

import (
	"errors"
	"fmt"
	"sort"
)

// ErrSchemaLookup is returned for a channel absent from a built table.
// It signals a configuration error, never a runtime data error.
var ErrSchemaLookup = errors.New("schema lookup failure")

// Channel names of a per-side dredging schema.
const (
	VacuumPressure = "vacuum pressure"
	Density        = "density"
	FlowSpeed      = "flow speed"
	PullingForce1  = "pulling force 1"
	PullingForce2  = "pulling force 2"
	FlowVolume     = "flow volume"
)

// Base is the side-specific base configuration of a dredging schema.
// Real indexes address DB203 as an array of reals; FlowVolume is a DB2 byte offset.
type Base struct {
	VacuumPressure int `yaml:"vacuum_pressure"`
	DensitySpeed   int `yaml:"density_speed"`
	PullingForce   int `yaml:"pulling_force"`
	FlowVolume     int `yaml:"flow_volume"`
}

// DefaultBase returns the factory addresses for a side.
func DefaultBase(side Side) Base {
	if side == Starboard {
		return Base{VacuumPressure: 4, DensitySpeed: 10, PullingForce: 22, FlowVolume: 236}
	}
	return Base{VacuumPressure: 2, DensitySpeed: 8, PullingForce: 20, FlowVolume: 232}
}

// Table is an immutable name -> field map.
type Table struct {
	name   string
	fields map[string]Field
}

// Build produces the dredging schema of one side.
// Pure and deterministic: both sides share the same layout shifted by base.
func Build(side Side, base Base) *Table {
	realAt := func(name string, index int, unit string) Field {
		return Field{Name: name, Block: DB203, Offset: index * 4, Kind: Real, Unit: unit}
	}

	return newTable(side.String(),
		realAt(VacuumPressure, base.VacuumPressure, "kPa"),
		realAt(Density, base.DensitySpeed, "g/cm3"),
		realAt(FlowSpeed, base.DensitySpeed+1, "m/s"),
		realAt(PullingForce1, base.PullingForce, "kN"),
		realAt(PullingForce2, base.PullingForce+1, "kN"),
		Field{Name: FlowVolume, Block: DB2, Offset: base.FlowVolume, Kind: Real, Unit: "m3/h"},
	)
}

func newTable(name string, fields ...Field) *Table {
	t := &Table{name: name, fields: make(map[string]Field, len(fields))}
	for _, f := range fields {
		t.fields[f.Name] = f
	}
	return t
}

// Name returns the table label ("ps", "sb", "hull", ...).
func (t *Table) Name() string { return t.name }

// Lookup resolves a channel name.
func (t *Table) Lookup(name string) (Field, error) {
	f, ok := t.fields[name]
	if !ok {
		return Field{}, fmt.Errorf("%w: %q not in %s table", ErrSchemaLookup, name, t.name)
	}
	return f, nil
}

// Fields returns a copy of all fields ordered by block then offset.
func (t *Table) Fields() []Field {
	out := make([]Field, 0, len(t.fields))
	for _, f := range t.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Block != out[j].Block {
			return out[i].Block < out[j].Block
		}
		if out[i].Offset != out[j].Offset {
			return out[i].Offset < out[j].Offset
		}
		return out[i].Bit < out[j].Bit
	})
	return out
}

// Validate checks that no two byte-wide fields overlap inside a block.
// Bit fields may share a byte as long as their bit differs.
func Validate(tables ...*Table) error {
	type owner struct {
		table string
		field Field
	}

	byBlock := make(map[Block][]owner)
	for _, t := range tables {
		for _, f := range t.Fields() {
			if f.Offset < 0 {
				return fmt.Errorf("schema %s: field %q has negative offset %d", t.name, f.Name, f.Offset)
			}
			byBlock[f.Block] = append(byBlock[f.Block], owner{table: t.name, field: f})
		}
	}

	for blk, owners := range byBlock {
		for i := 0; i < len(owners); i++ {
			for j := i + 1; j < len(owners); j++ {
				a, b := owners[i].field, owners[j].field
				if a.Kind == Bit && b.Kind == Bit && a.Offset == b.Offset {
					if a.Bit == b.Bit {
						return fmt.Errorf("schema overlap: %s %s.%q and %s.%q share bit %d.%d",
							blk, owners[i].table, a.Name, owners[j].table, b.Name, a.Offset, a.Bit)
					}
					continue
				}
				if a.Offset < b.End() && b.Offset < a.End() {
					return fmt.Errorf("schema overlap: %s %s.%q [%d,%d) overlaps %s.%q [%d,%d)",
						blk, owners[i].table, a.Name, a.Offset, a.End(),
						owners[j].table, b.Name, b.Offset, b.End())
				}
			}
		}
	}

	return nil
}

// Extent returns the minimum block length, per block, that the tables need.
func Extent(tables ...*Table) map[Block]int {
	out := make(map[Block]int)
	for _, t := range tables {
		for _, f := range t.fields {
			if e := f.End(); e > out[f.Block] {
				out[f.Block] = e
			}
		}
	}
	return out
}
