// internal/series/store.go
package series

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Store is an append-only, time-indexed sample history with a bounded
// retention policy, an independent read cursor and an interactive view.
//
// Stored content changes only through Append (and Load backfill).
// Seek, SetRetentionWindow and the view operations never touch samples;
// eviction under a new retention policy happens lazily on the next append.
// While a retention window is pinned, every read is limited to the samples
// inside it.
type Store struct {
	mu  sync.RWMutex
	cfg Config

	samples []Sample

	// explicit retention interval (replay); overrides rotation/window
	pinned   bool
	pinStart int64
	pinEnd   int64

	cursor int // index into samples, -1 = none

	view view
}

type view struct {
	start  int64
	end    int64
	follow bool
}

// New creates an empty store.
func New(cfg Config) (*Store, error) {
	if cfg.Channels <= 0 {
		return nil, fmt.Errorf("series: channels must be > 0 (got %d)", cfg.Channels)
	}
	if cfg.Window < 0 {
		return nil, fmt.Errorf("series: window must be >= 0 (got %s)", cfg.Window)
	}
	if cfg.ViewSpan <= 0 {
		cfg.ViewSpan = defaultViewSpan
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	return &Store{
		cfg:    cfg,
		cursor: -1,
		view:   view{follow: true},
	}, nil
}

// Channels returns the fixed vector length.
func (s *Store) Channels() int { return s.cfg.Channels }

// Append stores one sample. Timestamps must be strictly increasing.
// A rejected sample leaves the store untouched.
func (s *Store) Append(at int64, values []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendLocked(at, values)
}

func (s *Store) appendLocked(at int64, values []float64) error {
	if len(values) != s.cfg.Channels {
		return fmt.Errorf("%w: got %d want %d", ErrChannelCount, len(values), s.cfg.Channels)
	}
	if n := len(s.samples); n > 0 && at <= s.samples[n-1].At {
		return fmt.Errorf("%w: at=%d last=%d", ErrOutOfOrderSample, at, s.samples[n-1].At)
	}

	s.evictLocked(at)

	vs := make([]float64, len(values))
	copy(vs, values)
	s.samples = append(s.samples, Sample{At: at, Values: vs})

	if s.view.follow {
		s.followLocked()
	}
	return nil
}

// Load backfills samples from a history source.
// Samples that collide with an existing timestamp, fall outside retention or
// past a pinned interval are skipped; the number of inserted samples is returned.
func (s *Store) Load(samples []Sample) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, in := range samples {
		if len(in.Values) != s.cfg.Channels {
			continue
		}
		if in.At < s.cutoffLocked(s.lastAtLocked(in.At)) {
			continue
		}
		if s.pinned && in.At > s.pinEnd {
			continue
		}

		i := sort.Search(len(s.samples), func(i int) bool { return s.samples[i].At >= in.At })
		if i < len(s.samples) && s.samples[i].At == in.At {
			continue
		}

		vs := make([]float64, len(in.Values))
		copy(vs, in.Values)

		s.samples = append(s.samples, Sample{})
		copy(s.samples[i+1:], s.samples[i:])
		s.samples[i] = Sample{At: in.At, Values: vs}

		if s.cursor >= i {
			s.cursor++
		}
		inserted++
	}

	if s.view.follow {
		s.followLocked()
	}
	return inserted
}

// SetRetentionWindow pins retention to [start, end] and resets the view to
// that interval and the read cursor to "none".
func (s *Store) SetRetentionWindow(start, end int64) error {
	if end < start {
		return fmt.Errorf("%w: start=%d end=%d", ErrInvalidWindow, start, end)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pinned = true
	s.pinStart, s.pinEnd = start, end
	s.cursor = -1
	s.view = view{start: start, end: end}
	return nil
}

// ClearRetentionWindow returns to rotation/window retention and tail following.
func (s *Store) ClearRetentionWindow() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pinned = false
	s.cursor = -1
	s.view = view{follow: true}
	s.followLocked()
}

// RetentionWindow reports the pinned interval, if any.
func (s *Store) RetentionWindow() (start, end int64, pinned bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pinStart, s.pinEnd, s.pinned
}

// Seek moves the read cursor to the retained sample nearest to at.
// Ties resolve to the earlier sample. Stored samples are not touched.
func (s *Store) Seek(at int64) (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lo, hi := s.boundsLocked()
	if lo == hi {
		s.cursor = -1
		return Sample{}, false
	}

	i := lo + sort.Search(hi-lo, func(k int) bool { return s.samples[lo+k].At >= at })
	switch {
	case i == hi:
		i = hi - 1
	case i > lo && at-s.samples[i-1].At <= s.samples[i].At-at:
		i--
	}
	s.cursor = i

	smp := s.samples[i]
	if smp.At < s.view.start || smp.At > s.view.end {
		w := s.view.end - s.view.start
		s.view.start = smp.At - w/2
		s.view.end = s.view.start + w
		if slo, shi, ok := s.spanLocked(); ok {
			s.clampLocked(slo, shi)
		}
	}
	s.view.follow = false

	return cloneSample(smp), true
}

// Cursor returns the sample under the read cursor.
func (s *Store) Cursor() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if lo, hi := s.boundsLocked(); s.cursor < lo || s.cursor >= hi {
		return Sample{}, false
	}
	return cloneSample(s.samples[s.cursor]), true
}

// Len returns the number of retained samples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.retainedLocked())
}

// Last returns the newest retained sample.
func (s *Store) Last() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.retainedLocked()
	if len(r) == 0 {
		return Sample{}, false
	}
	return cloneSample(r[len(r)-1]), true
}

// First returns the oldest retained sample.
func (s *Store) First() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.retainedLocked()
	if len(r) == 0 {
		return Sample{}, false
	}
	return cloneSample(r[0]), true
}

// Samples returns a copy of every retained sample.
func (s *Store) Samples() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSamples(s.retainedLocked())
}

// Range returns a copy of the samples in [from, to].
func (s *Store) Range(from, to int64) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSamples(s.rangeLocked(from, to))
}

func (s *Store) rangeLocked(from, to int64) []Sample {
	r := s.retainedLocked()
	lo := sort.Search(len(r), func(i int) bool { return r[i].At >= from })
	hi := sort.Search(len(r), func(i int) bool { return r[i].At > to })
	if lo >= hi {
		return nil
	}
	return r[lo:hi]
}

// ---- retention ----

// boundsLocked returns the index interval [lo, hi) of the samples readers
// may see. Samples outside a pinned window stay stored until the next
// append evicts them, but are hidden.
func (s *Store) boundsLocked() (lo, hi int) {
	n := len(s.samples)
	if !s.pinned {
		return 0, n
	}
	lo = sort.Search(n, func(i int) bool { return s.samples[i].At >= s.pinStart })
	hi = sort.Search(n, func(i int) bool { return s.samples[i].At > s.pinEnd })
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func (s *Store) retainedLocked() []Sample {
	lo, hi := s.boundsLocked()
	return s.samples[lo:hi]
}

func (s *Store) lastAtLocked(fallback int64) int64 {
	if n := len(s.samples); n > 0 && s.samples[n-1].At > fallback {
		return s.samples[n-1].At
	}
	return fallback
}

// cutoffLocked returns the oldest timestamp retained when now is the newest.
func (s *Store) cutoffLocked(now int64) int64 {
	if s.pinned {
		return s.pinStart
	}

	cut := int64(math.MinInt64)
	if b, ok := s.rotationStart(now); ok {
		cut = b
	}
	if s.cfg.Window > 0 {
		if w := now - s.cfg.Window.Milliseconds(); w > cut {
			cut = w
		}
	}
	return cut
}

func (s *Store) rotationStart(now int64) (int64, bool) {
	t := time.UnixMilli(now).In(s.cfg.Location)
	switch s.cfg.Rotation {
	case RotateHourly:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location()).UnixMilli(), true
	case RotateDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).UnixMilli(), true
	default:
		return 0, false
	}
}

func (s *Store) evictLocked(now int64) {
	cut := s.cutoffLocked(now)

	n := sort.Search(len(s.samples), func(i int) bool { return s.samples[i].At >= cut })
	if n == 0 {
		return
	}

	s.samples = append(s.samples[:0], s.samples[n:]...)
	if s.cursor >= 0 {
		if s.cursor < n {
			s.cursor = -1
		} else {
			s.cursor -= n
		}
	}
}

func cloneSample(smp Sample) Sample {
	vs := make([]float64, len(smp.Values))
	copy(vs, smp.Values)
	return Sample{At: smp.At, Values: vs}
}

func cloneSamples(in []Sample) []Sample {
	if len(in) == 0 {
		return nil
	}
	out := make([]Sample, len(in))
	for i, smp := range in {
		out[i] = cloneSample(smp)
	}
	return out
}
