// internal/sink/log.go
package sink

import (
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/tamzrod/draughts-telemetry/internal/schema"
)

// LogSink writes a one-line summary of every Nth committed frame.
type LogSink struct {
	src   Source
	log   *log.Logger
	every uint64

	n atomic.Uint64
}

// NewLogSink logs one frame out of every (0 or 1 = all).
func NewLogSink(src Source, logger *log.Logger, every int) *LogSink {
	if every < 1 {
		every = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{src: src, log: logger, every: uint64(every)}
}

func (s *LogSink) BeginUpdateSequence() {}
func (s *LogSink) EndUpdateSequence()   {}

func (s *LogSink) FrameCommitted() {
	if s.n.Add(1)%s.every != 0 {
		return
	}

	snap := s.src.Snapshot()
	r := snap.Readings
	s.log.Info("frame",
		"seq", humanize.Comma(int64(snap.Seq)),
		"mode", snap.Mode,
		"hopper", humanize.FtoaWithDigits(r[schema.HopperHeight].Value, 2),
		"payload", humanize.FtoaWithDigits(r[schema.Payload].Value, 1),
		"draught", humanize.FtoaWithDigits(r[schema.AverageDraught].Value, 2),
		"target", snap.Overflow.Target,
	)
}
