// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/tamzrod/draughts-telemetry/internal/publish"
	"github.com/tamzrod/draughts-telemetry/internal/schema"
	"github.com/tamzrod/draughts-telemetry/internal/series"
)

const defaultHistoryTimeout = 5 * time.Second

// Config wires a session to its schemas and optional history.
type Config struct {
	Hull      *schema.Table
	Port      *schema.Table
	Starboard *schema.Table
	Ranges    Ranges

	// History backfills replay intervals. Optional.
	History Source
	// Recorder archives live samples. Optional.
	Recorder       Recorder
	HistoryTimeout time.Duration
}

// Session turns PLC frames into a consistent dashboard model.
//
// Every frame runs inside the publisher's exclusive section. Decoding writes
// into a staged copy of the model; the stage replaces the committed model in
// PostFrame only when every step succeeded, so a bad frame leaves the
// previous readings in place.
type Session struct {
	id  string
	log *log.Logger
	obs Observer
	pub *publish.Publisher

	ranges         Ranges
	history        Source
	recorder       Recorder
	historyTimeout time.Duration

	hull  hullFields
	sides [2]sideFields

	// guarded by the publisher section
	mode       Mode
	store      *series.Store
	pending    *Interval
	seq        uint64
	current    state
	stage      state
	frameErr   error
	frameStart time.Time
}

type hullFields struct {
	bits      []schema.Field
	reals     []schema.Field
	cylinders [series.NumChannels]schema.Field
	target    schema.Field
}

type sideFields struct {
	side    schema.Side
	channel map[string]schema.Field
}

type state struct {
	at       int64
	readings map[string]Reading
	radars   [2]Radar
	overflow Overflow
	doors    Doors
	sample   []float64
}

func (st state) clone() state {
	out := st
	out.readings = make(map[string]Reading, len(st.readings))
	for k, v := range st.readings {
		out.readings[k] = v
	}
	if st.sample != nil {
		out.sample = append([]float64(nil), st.sample...)
	}
	return out
}

var cylinderNames = [series.NumChannels]string{
	series.HopperHeight: schema.HopperHeight,
	series.Displacement: schema.Displacement,
	series.Payload:      schema.Payload,
	series.EarthWork:    schema.EarthWork,
	series.Capacity:     schema.Capacity,
}

var sideChannels = []string{
	schema.VacuumPressure,
	schema.Density,
	schema.FlowSpeed,
	schema.PullingForce1,
	schema.PullingForce2,
	schema.FlowVolume,
}

// New resolves every field the session decodes. A missing field is a
// configuration error and fails construction.
func New(cfg Config, logger *log.Logger, obs Observer) (*Session, error) {
	if cfg.Hull == nil || cfg.Port == nil || cfg.Starboard == nil {
		return nil, errors.New("session: hull, port and starboard schemas are required")
	}
	if err := cfg.Ranges.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = defaultHistoryTimeout
	}

	s := &Session{
		id:             uuid.NewString(),
		obs:            obs,
		pub:            publish.New(),
		ranges:         cfg.Ranges,
		history:        cfg.History,
		recorder:       cfg.Recorder,
		historyTimeout: cfg.HistoryTimeout,
		current:        state{readings: map[string]Reading{}},
	}
	s.log = logger.With("session", s.id[:8])

	if err := s.resolve(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) resolve(cfg Config) error {
	lookup := func(t *schema.Table, name string) (schema.Field, error) {
		f, err := t.Lookup(name)
		if err != nil {
			return schema.Field{}, fmt.Errorf("session: %w", err)
		}
		return f, nil
	}

	bits := append(append([]string{}, schema.OverflowStatusChannels...), schema.OpenDoorCheck, schema.CloseDoorCheck)
	for _, name := range bits {
		f, err := lookup(cfg.Hull, name)
		if err != nil {
			return err
		}
		s.hull.bits = append(s.hull.bits, f)
	}

	reals := append(append([]string{}, schema.DraughtChannels...), schema.OverflowProgress)
	reals = append(reals, cylinderNames[:]...)
	for _, name := range reals {
		f, err := lookup(cfg.Hull, name)
		if err != nil {
			return err
		}
		s.hull.reals = append(s.hull.reals, f)
	}

	for ch, name := range cylinderNames {
		f, err := lookup(cfg.Hull, name)
		if err != nil {
			return err
		}
		s.hull.cylinders[ch] = f
	}

	f, err := lookup(cfg.Hull, schema.OverflowTarget)
	if err != nil {
		return err
	}
	s.hull.target = f

	for i, t := range []*schema.Table{cfg.Port, cfg.Starboard} {
		sf := sideFields{side: schema.Side(i), channel: make(map[string]schema.Field, len(sideChannels))}
		for _, name := range sideChannels {
			f, err := lookup(t, name)
			if err != nil {
				return err
			}
			sf.channel[name] = f
		}
		s.sides[i] = sf
	}
	return nil
}

// ID returns the session identity used in logs and published snapshots.
func (s *Session) ID() string { return s.id }

// Subscribe adds a listener to the frame publisher.
func (s *Session) Subscribe(l publish.Listener) { s.pub.Subscribe(l) }

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	var m Mode
	s.pub.Read(func() { m = s.mode })
	return m
}

// Store returns the attached time series store, or nil.
func (s *Session) Store() *series.Store {
	var st *series.Store
	s.pub.Read(func() { st = s.store })
	return st
}

// Pending returns the buffered replay interval, if any.
func (s *Session) Pending() (Interval, bool) {
	var (
		iv Interval
		ok bool
	)
	s.pub.Read(func() {
		if s.pending != nil {
			iv, ok = *s.pending, true
		}
	})
	return iv, ok
}

// StartOver switches to replay over [departure, destination].
// Without an attached store the interval is buffered and applied by Load;
// a newer request replaces a buffered one.
func (s *Session) StartOver(ctx context.Context, departure, destination int64) error {
	if destination < departure {
		return fmt.Errorf("session: %w: departure=%d destination=%d", series.ErrInvalidWindow, departure, destination)
	}
	// the destination second is included
	iv := Interval{From: departure, To: destination + 1000}

	var attached bool
	s.pub.Read(func() { attached = s.store != nil })

	var backfill []series.Sample
	if attached {
		backfill = s.fetch(ctx, iv)
	}

	return s.pub.Frame(func() error {
		s.mode = Replay
		if s.store == nil {
			s.pending = &iv
			s.log.Info("replay interval buffered", "from", iv.From, "to", iv.To)
			return nil
		}
		s.pending = nil
		return s.applyLocked(iv, backfill)
	})
}

// Load attaches the time series store and applies a buffered replay interval.
func (s *Session) Load(ctx context.Context, store *series.Store) error {
	if store == nil {
		return errors.New("session: nil store")
	}
	if store.Channels() != series.NumChannels {
		return fmt.Errorf("session: %w: store has %d channels want %d",
			series.ErrChannelCount, store.Channels(), series.NumChannels)
	}

	want, buffered := s.Pending()
	var backfill []series.Sample
	if buffered {
		backfill = s.fetch(ctx, want)
	}

	return s.pub.Frame(func() error {
		s.store = store
		if s.pending == nil {
			return nil
		}
		iv := *s.pending
		s.pending = nil
		if !buffered || iv != want {
			// superseded while fetching
			backfill = nil
		}
		return s.applyLocked(iv, backfill)
	})
}

// Resume leaves replay and returns to live ingestion.
func (s *Session) Resume() error {
	return s.pub.Frame(func() error {
		s.mode = Live
		s.pending = nil
		if s.store != nil {
			s.store.ClearRetentionWindow()
		}
		s.log.Info("live mode resumed")
		return nil
	})
}

func (s *Session) applyLocked(iv Interval, backfill []series.Sample) error {
	if err := s.store.SetRetentionWindow(iv.From, iv.To); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	n := 0
	if len(backfill) > 0 {
		n = s.store.Load(backfill)
	}
	s.obs.StoreSize(s.store.Len())
	s.log.Info("replay interval applied",
		"from", time.UnixMilli(iv.From).UTC().Format(time.RFC3339),
		"to", time.UnixMilli(iv.To).UTC().Format(time.RFC3339),
		"backfill", humanize.Comma(int64(n)))
	return nil
}

func (s *Session) fetch(ctx context.Context, iv Interval) []series.Sample {
	if s.history == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.historyTimeout)
	defer cancel()

	samples, err := s.history.Range(ctx, iv.From, iv.To)
	if err != nil {
		s.log.Warn("history backfill failed", "from", iv.From, "to", iv.To, "err", err)
		return nil
	}
	return samples
}

// Snapshot returns a consistent copy of the last committed frame.
func (s *Session) Snapshot() Snapshot {
	var snap Snapshot
	s.pub.Read(func() {
		cur := s.current.clone()
		snap = Snapshot{
			ID:        s.id,
			Seq:       s.seq,
			At:        cur.at,
			Mode:      s.mode,
			Readings:  cur.readings,
			Port:      cur.radars[schema.Port],
			Starboard: cur.radars[schema.Starboard],
			Overflow:  cur.overflow,
			Doors:     cur.doors,
			Sample:    cur.sample,
		}
		if s.store != nil {
			if c, ok := s.store.Cursor(); ok {
				snap.Cursor = &c
			}
		}
	})
	return snap
}
