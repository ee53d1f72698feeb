// internal/history/recorder.go
package history

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/tamzrod/draughts-telemetry/internal/series"
)

// Writer persists sample batches.
type Writer interface {
	Save(ctx context.Context, samples []series.Sample) error
}

// Purger drops archived days.
type Purger interface {
	Purge(ctx context.Context, now time.Time, keep int) (int64, error)
}

// Observer counts archive outcomes.
type Observer interface {
	HistoryRecorded(ok bool)
}

// RecorderOptions tune the archive worker.
type RecorderOptions struct {
	Buffer     int           // queued samples before Record drops
	Batch      int           // samples per transaction
	FlushEvery time.Duration // max age of a queued sample
	KeepDays   int           // 0 = never purge
	PurgeEvery time.Duration
}

func (o *RecorderOptions) normalize() {
	if o.Buffer <= 0 {
		o.Buffer = 1024
	}
	if o.Batch <= 0 {
		o.Batch = 64
	}
	if o.FlushEvery <= 0 {
		o.FlushEvery = 2 * time.Second
	}
	if o.PurgeEvery <= 0 {
		o.PurgeEvery = time.Hour
	}
}

// Recorder moves committed samples off the ingestion path into the archive.
// Record never blocks; Run owns all I/O.
type Recorder struct {
	w    Writer
	opts RecorderOptions
	log  *log.Logger
	obs  Observer

	in chan series.Sample
}

// NewRecorder creates an archive worker around w.
func NewRecorder(w Writer, opts RecorderOptions, logger *log.Logger, obs Observer) *Recorder {
	opts.normalize()
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{
		w:    w,
		opts: opts,
		log:  logger,
		obs:  obs,
		in:   make(chan series.Sample, opts.Buffer),
	}
}

// Record queues a sample. A full queue drops it.
func (r *Recorder) Record(s series.Sample) {
	select {
	case r.in <- s:
	default:
		r.observe(false)
		r.log.Warn("history queue full, sample dropped", "at", s.At)
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	flush := time.NewTicker(r.opts.FlushEvery)
	defer flush.Stop()

	purge := time.NewTicker(r.opts.PurgeEvery)
	defer purge.Stop()

	r.purge(ctx)

	batch := make([]series.Sample, 0, r.opts.Batch)
	for {
		select {
		case <-ctx.Done():
			batch = r.drain(batch)
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			r.save(fctx, batch)
			cancel()
			return ctx.Err()

		case s := <-r.in:
			batch = append(batch, s)
			if len(batch) >= r.opts.Batch {
				batch = r.save(ctx, batch)
			}

		case <-flush.C:
			batch = r.save(ctx, batch)

		case <-purge.C:
			r.purge(ctx)
		}
	}
}

func (r *Recorder) drain(batch []series.Sample) []series.Sample {
	for {
		select {
		case s := <-r.in:
			batch = append(batch, s)
		default:
			return batch
		}
	}
}

// save writes batch and returns it emptied. A failed batch is dropped.
func (r *Recorder) save(ctx context.Context, batch []series.Sample) []series.Sample {
	if len(batch) == 0 {
		return batch
	}
	err := r.w.Save(ctx, batch)
	for range batch {
		r.observe(err == nil)
	}
	if err != nil {
		r.log.Error("history save failed", "samples", len(batch), "err", err)
	} else {
		r.log.Debug("history saved", "samples", len(batch))
	}
	return batch[:0]
}

func (r *Recorder) purge(ctx context.Context) {
	p, ok := r.w.(Purger)
	if !ok || r.opts.KeepDays <= 0 {
		return
	}
	n, err := p.Purge(ctx, time.Now(), r.opts.KeepDays)
	if err != nil {
		r.log.Error("history purge failed", "err", err)
		return
	}
	if n > 0 {
		r.log.Info("history purged", "samples", humanize.Comma(n), "keep_days", r.opts.KeepDays)
	}
}

func (r *Recorder) observe(ok bool) {
	if r.obs != nil {
		r.obs.HistoryRecorded(ok)
	}
}
