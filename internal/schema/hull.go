// internal/schema/hull.go
package schema

// Side-independent hull channels.
const (
	PSBowDraught      = "ps bow draught"
	PSSuctionDraught  = "ps suction draught"
	PSAmidshipDraught = "ps amidship draught"
	PSSternDraught    = "ps stern draught"
	SBBowDraught      = "sb bow draught"
	SBSuctionDraught  = "sb suction draught"
	SBAmidshipDraught = "sb amidship draught"
	SBSternDraught    = "sb stern draught"
	BowDraught        = "bow draught"
	SternDraught      = "stern draught"
	AverageDraught    = "average draught"
	PSBowHeight       = "ps bow hopper height"
	SBBowHeight       = "sb bow hopper height"
	PSSternHeight     = "ps stern hopper height"
	SBSternHeight     = "sb stern hopper height"
	HopperHeight      = "average hopper height"
	NetWeight         = "net weight"
	Displacement      = "displacement"
	Payload           = "payload"
	EarthWork         = "earthwork"
	Capacity          = "capacity"

	OverflowProgress = "overflow pipe progress"
	OverflowTarget   = "overflow pipe target height"

	OverflowUp         = "overflow pipe up"
	OverflowDown       = "overflow pipe down"
	OverflowUpperLimit = "overflow pipe upper limit"
	OverflowLowerLimit = "overflow pipe lower limit"
	OverflowFault      = "overflow pipe fault"
	OpenDoorCheck      = "open door check"
	CloseDoorCheck     = "close door check"
)

// DraughtChannels lists the dimension readings in display order.
var DraughtChannels = []string{
	SternDraught, PSSternDraught, PSSuctionDraught, PSAmidshipDraught, SBSternDraught, PSSternHeight, SBSternHeight,
	BowDraught, PSBowDraught, SBSuctionDraught, SBAmidshipDraught, SBBowDraught, PSBowHeight, SBBowHeight,
	NetWeight, AverageDraught,
}

// OverflowStatusChannels lists the overflow pipe status bits.
var OverflowStatusChannels = []string{
	OverflowUp, OverflowDown, OverflowUpperLimit, OverflowLowerLimit, OverflowFault,
}

// Hull returns the shared hull table: DB2 metrics, overflow reals and status bits.
func Hull() *Table {
	dbd := func(name string, offset int, unit string) Field {
		return Field{Name: name, Block: DB2, Offset: offset, Kind: Real, Unit: unit}
	}
	bit := func(name string, offset int, b uint8) Field {
		return Field{Name: name, Block: DB205, Offset: offset, Bit: b, Kind: Bit}
	}

	return newTable("hull",
		dbd(PSBowDraught, 164, "m"),
		dbd(PSSuctionDraught, 168, "m"),
		dbd(PSAmidshipDraught, 172, "m"),
		dbd(PSSternDraught, 176, "m"),
		dbd(SBBowDraught, 180, "m"),
		dbd(SBSuctionDraught, 184, "m"),
		dbd(SBAmidshipDraught, 188, "m"),
		dbd(SBSternDraught, 192, "m"),
		dbd(BowDraught, 196, "m"),
		dbd(SternDraught, 200, "m"),
		dbd(AverageDraught, 204, "m"),
		dbd(PSBowHeight, 208, "m"),
		dbd(SBBowHeight, 212, "m"),
		dbd(PSSternHeight, 216, "m"),
		dbd(SBSternHeight, 220, "m"),
		dbd(HopperHeight, 224, "m"),
		dbd(NetWeight, 228, "t"),
		dbd(Displacement, 240, "t"),
		dbd(Payload, 244, "t"),
		dbd(EarthWork, 248, "m3"),
		dbd(Capacity, 252, "m3"),

		Field{Name: OverflowProgress, Block: DB203, Offset: 30 * 4, Kind: Real, Unit: "m"},
		Field{Name: OverflowTarget, Block: DB20, Offset: 12, Kind: Real, Unit: "m"},

		bit(OverflowUp, 12, 0),
		bit(OverflowDown, 12, 1),
		bit(OverflowUpperLimit, 12, 2),
		bit(OverflowLowerLimit, 12, 3),
		bit(OverflowFault, 12, 4),
		bit(OpenDoorCheck, 40, 0),
		bit(CloseDoorCheck, 40, 1),
	)
}
