// internal/sink/mqtt.go
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tamzrod/draughts-telemetry/internal/series"
	"github.com/tamzrod/draughts-telemetry/internal/session"
)

const defaultSeriesPoints = 720

// Source yields the last committed frame.
type Source interface {
	Snapshot() session.Snapshot
}

// SeriesSource yields the interactive time series view.
type SeriesSource interface {
	View() (start, end int64)
	Following() bool
	Visible() []series.Sample
	Cursor() (series.Sample, bool)
}

// SeriesView is the payload of <prefix>/series.
type SeriesView struct {
	Start   int64           `json:"start"`
	End     int64           `json:"end"`
	Follow  bool            `json:"follow"`
	Cursor  *series.Sample  `json:"cursor,omitempty"`
	Samples []series.Sample `json:"samples"`
}

// Client is the part of mqtt.Client the sink publishes through.
type Client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Observer counts publish outcomes.
type Observer interface {
	SnapshotPublished(ok bool)
}

// MQTTOptions configure the broker connection and topic.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Retained    bool
	MinInterval time.Duration // coalesce frames faster than this
	Timeout     time.Duration

	// SeriesPoints caps the samples per series payload; the visible
	// samples are strided down to fit. 0 = 720.
	SeriesPoints int
}

// Dial connects to the broker with automatic reconnection.
func Dial(o MQTTOptions, logger *log.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connection established", "broker", o.Broker, "client_id", o.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "broker", o.Broker, "err", err)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(timeoutOr(o.Timeout)) {
		return nil, fmt.Errorf("mqtt connection timeout (%s)", o.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return c, nil
}

// MQTTSink publishes the committed snapshot as JSON to <prefix>/snapshot
// and, when a series source is set, the visible time series to <prefix>/series.
//
// FrameCommitted and ViewChanged only mark state dirty; Run does the network
// I/O so the frame path never waits on the broker. Frames arriving faster
// than MinInterval are coalesced into the newest one.
type MQTTSink struct {
	client Client
	src    Source
	series SeriesSource
	opts   MQTTOptions
	log    *log.Logger
	obs    Observer

	wake chan struct{}

	mu        sync.Mutex
	last      uint64 // seq of the last published snapshot
	viewDirty bool
}

// NewMQTTSink creates a sink publishing src through client.
func NewMQTTSink(client Client, src Source, opts MQTTOptions, logger *log.Logger, obs Observer) *MQTTSink {
	if logger == nil {
		logger = log.Default()
	}
	return &MQTTSink{
		client: client,
		src:    src,
		opts:   opts,
		log:    logger,
		obs:    obs,
		wake:   make(chan struct{}, 1),
	}
}

// Topic returns the snapshot topic.
func (s *MQTTSink) Topic() string {
	return s.opts.TopicPrefix + "/snapshot"
}

// SeriesTopic returns the time series topic.
func (s *MQTTSink) SeriesTopic() string {
	return s.opts.TopicPrefix + "/series"
}

// SetSeries enables series publishing. Call before Run.
func (s *MQTTSink) SetSeries(src SeriesSource) {
	s.series = src
}

// ViewChanged schedules a series publish after a pan, zoom, seek or mode switch.
func (s *MQTTSink) ViewChanged() {
	s.mu.Lock()
	s.viewDirty = true
	s.mu.Unlock()
	s.FrameCommitted()
}

func (s *MQTTSink) BeginUpdateSequence() {}
func (s *MQTTSink) EndUpdateSequence()   {}

// FrameCommitted schedules a publish of the new snapshot.
func (s *MQTTSink) FrameCommitted() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run publishes scheduled snapshots until ctx is done.
func (s *MQTTSink) Run(ctx context.Context) error {
	var next time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}

		if wait := time.Until(next); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		next = time.Now().Add(s.opts.MinInterval)

		if err := s.PublishOnce(); err != nil {
			s.log.Warn("snapshot publish failed", "topic", s.Topic(), "err", err)
		}
	}
}

// PublishOnce publishes the current snapshot if it is newer than the last
// one, then the series view if the snapshot moved or the view changed.
func (s *MQTTSink) PublishOnce() error {
	snap := s.src.Snapshot()

	s.mu.Lock()
	fresh := snap.Seq != 0 && snap.Seq != s.last
	viewDirty := s.viewDirty
	s.mu.Unlock()

	if fresh {
		err := s.publishSnapshot(snap)
		if s.obs != nil {
			s.obs.SnapshotPublished(err == nil)
		}
		if err != nil {
			return err
		}

		s.mu.Lock()
		s.last = snap.Seq
		s.mu.Unlock()
	}

	if s.series == nil || !(fresh || viewDirty) {
		return nil
	}
	if err := s.publishSeries(); err != nil {
		return err
	}

	s.mu.Lock()
	s.viewDirty = false
	s.mu.Unlock()
	return nil
}

func (s *MQTTSink) publishSnapshot(snap session.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.publish(s.Topic(), payload); err != nil {
		return err
	}

	s.log.Debug("snapshot published", "topic", s.Topic(), "seq", snap.Seq, "size", len(payload))
	return nil
}

func (s *MQTTSink) publishSeries() error {
	start, end := s.series.View()
	v := SeriesView{
		Start:   start,
		End:     end,
		Follow:  s.series.Following(),
		Samples: stride(s.series.Visible(), s.opts.SeriesPoints),
	}
	if c, ok := s.series.Cursor(); ok {
		v.Cursor = &c
	}
	if v.Samples == nil {
		v.Samples = []series.Sample{}
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal series: %w", err)
	}
	if err := s.publish(s.SeriesTopic(), payload); err != nil {
		return err
	}

	s.log.Debug("series published", "topic", s.SeriesTopic(), "samples", len(v.Samples), "size", len(payload))
	return nil
}

func (s *MQTTSink) publish(topic string, payload []byte) error {
	if !s.client.IsConnected() {
		return errors.New("mqtt not connected")
	}

	token := s.client.Publish(topic, s.opts.QoS, s.opts.Retained, payload)
	if !token.WaitTimeout(timeoutOr(s.opts.Timeout)) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// stride thins in to about limit samples, keeping the newest.
func stride(in []series.Sample, limit int) []series.Sample {
	if limit <= 0 {
		limit = defaultSeriesPoints
	}
	if len(in) <= limit {
		return in
	}
	k := (len(in) + limit - 1) / limit
	out := make([]series.Sample, 0, limit+1)
	for i := 0; i < len(in); i += k {
		out = append(out, in[i])
	}
	if last := in[len(in)-1]; out[len(out)-1].At != last.At {
		out = append(out, last)
	}
	return out
}
func timeoutOr(d time.Duration) time.Duration {
	if d <= 0 {
		return 2 * time.Second
	}
	return d
}
