// internal/sink/sink_test.go
package sink

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/draughts-telemetry/internal/schema"
	"github.com/tamzrod/draughts-telemetry/internal/series"
	"github.com/tamzrod/draughts-telemetry/internal/session"
)

// ---- fakes ----

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type message struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu        sync.Mutex
	connected bool
	token     *fakeToken
	msgs      []message
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, message{topic: topic, qos: qos, payload: payload.([]byte)})
	if c.token != nil {
		return c.token
	}
	return &fakeToken{}
}

func (c *fakeClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

type fakeSource struct {
	mu   sync.Mutex
	snap session.Snapshot
}

func (s *fakeSource) Snapshot() session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *fakeSource) set(seq uint64) {
	s.mu.Lock()
	s.snap = session.Snapshot{
		ID:   "abc",
		Seq:  seq,
		Mode: session.Live,
		Readings: map[string]session.Reading{
			schema.HopperHeight: {Value: 4.5, Unit: "m"},
		},
	}
	s.mu.Unlock()
}

type pubObs struct{ ok, ko int }

func (o *pubObs) SnapshotPublished(ok bool) {
	if ok {
		o.ok++
	} else {
		o.ko++
	}
}

func quiet() *log.Logger { return log.New(io.Discard) }

// ---- MQTT ----

func TestMQTTSink_PublishesNewSnapshotOnce(t *testing.T) {
	c := &fakeClient{connected: true}
	src := &fakeSource{}
	obs := &pubObs{}
	s := NewMQTTSink(c, src, MQTTOptions{TopicPrefix: "vessel/draughts", QoS: 1}, quiet(), obs)

	require.NoError(t, s.PublishOnce()) // seq 0: nothing committed yet
	assert.Equal(t, 0, c.count())

	src.set(1)
	require.NoError(t, s.PublishOnce())
	require.NoError(t, s.PublishOnce())

	require.Equal(t, 1, c.count())
	msg := c.msgs[0]
	assert.Equal(t, "vessel/draughts/snapshot", msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "live", got["mode"])
	assert.EqualValues(t, 1, got["seq"])
	assert.Equal(t, 1, obs.ok)
}

func TestMQTTSink_Errors(t *testing.T) {
	src := &fakeSource{}
	src.set(1)

	s := NewMQTTSink(&fakeClient{}, src, MQTTOptions{}, quiet(), nil)
	assert.Error(t, s.PublishOnce(), "disconnected")

	c := &fakeClient{connected: true, token: &fakeToken{timeout: true}}
	s = NewMQTTSink(c, src, MQTTOptions{}, quiet(), nil)
	assert.EqualError(t, s.PublishOnce(), "publish timeout")

	obs := &pubObs{}
	c = &fakeClient{connected: true, token: &fakeToken{err: errors.New("not authorized")}}
	s = NewMQTTSink(c, src, MQTTOptions{}, quiet(), obs)
	assert.ErrorContains(t, s.PublishOnce(), "not authorized")
	assert.Equal(t, 1, obs.ko)

	// a failed snapshot is retried on the next attempt
	c.token = nil
	require.NoError(t, s.PublishOnce())
	assert.Equal(t, 1, obs.ok)
}

func TestMQTTSink_RunCoalesces(t *testing.T) {
	c := &fakeClient{connected: true}
	src := &fakeSource{}
	s := NewMQTTSink(c, src, MQTTOptions{MinInterval: 50 * time.Millisecond}, quiet(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for i := uint64(1); i <= 20; i++ {
		src.set(i)
		s.FrameCommitted()
	}

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if len(c.msgs) == 0 {
			return false
		}
		var got map[string]any
		_ = json.Unmarshal(c.msgs[len(c.msgs)-1].payload, &got)
		return got["seq"] == float64(20)
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Less(t, c.count(), 20)
}

func TestMQTTSink_NonFiniteReadingStillPublishes(t *testing.T) {
	sess, err := session.New(session.Config{
		Hull:      schema.Hull(),
		Port:      schema.Build(schema.Port, schema.DefaultBase(schema.Port)),
		Starboard: schema.Build(schema.Starboard, schema.DefaultBase(schema.Starboard)),
		Ranges:    session.DefaultRanges(),
	}, quiet(), nil)
	require.NoError(t, err)

	db2 := make([]byte, 256)
	binary.BigEndian.PutUint32(db2[224:], 0x7fc00000) // hopper height NaN
	require.NoError(t, sess.Ingest(session.Frame{
		At: 1000,
		Blocks: map[schema.Block][]byte{
			schema.DB4:   make([]byte, 8),
			schema.DB205: make([]byte, 41),
			schema.DB2:   db2,
			schema.DB203: make([]byte, 124),
		},
	}))

	c := &fakeClient{connected: true}
	s := NewMQTTSink(c, sess, MQTTOptions{TopicPrefix: "v"}, quiet(), nil)
	require.NoError(t, s.PublishOnce())
	require.Equal(t, 1, c.count())

	var got struct {
		Readings map[string]struct {
			Value   float64 `json:"value"`
			Invalid bool    `json:"invalid"`
		} `json:"readings"`
	}
	require.NoError(t, json.Unmarshal(c.msgs[0].payload, &got))
	hh := got.Readings[schema.HopperHeight]
	assert.True(t, hh.Invalid)
	assert.Zero(t, hh.Value)
	assert.False(t, got.Readings[schema.Displacement].Invalid)
}

func TestMQTTSink_PublishesSeriesView(t *testing.T) {
	st, err := series.New(series.Config{Channels: 1, ViewSpan: time.Minute})
	require.NoError(t, err)
	for i := int64(0); i < 100; i++ {
		require.NoError(t, st.Append(i*1000, []float64{float64(i)}))
	}

	c := &fakeClient{connected: true}
	src := &fakeSource{}
	s := NewMQTTSink(c, src, MQTTOptions{TopicPrefix: "v", SeriesPoints: 10}, quiet(), nil)
	s.SetSeries(st)
	assert.Equal(t, "v/series", s.SeriesTopic())

	// nothing committed and the view is untouched
	require.NoError(t, s.PublishOnce())
	assert.Equal(t, 0, c.count())

	src.set(1)
	require.NoError(t, s.PublishOnce())
	require.Equal(t, 2, c.count())
	assert.Equal(t, "v/snapshot", c.msgs[0].topic)
	assert.Equal(t, "v/series", c.msgs[1].topic)

	var v SeriesView
	require.NoError(t, json.Unmarshal(c.msgs[1].payload, &v))
	assert.Equal(t, int64(39_000), v.Start)
	assert.Equal(t, int64(99_000), v.End)
	assert.True(t, v.Follow)
	assert.Nil(t, v.Cursor)
	require.NotEmpty(t, v.Samples)
	assert.LessOrEqual(t, len(v.Samples), 11)
	assert.Equal(t, int64(99_000), v.Samples[len(v.Samples)-1].At)

	// a gesture republishes the series without a new frame
	st.Seek(50_000)
	s.ViewChanged()
	require.NoError(t, s.PublishOnce())
	require.Equal(t, 3, c.count())
	assert.Equal(t, "v/series", c.msgs[2].topic)
	require.NoError(t, json.Unmarshal(c.msgs[2].payload, &v))
	require.NotNil(t, v.Cursor)
	assert.Equal(t, int64(50_000), v.Cursor.At)
	assert.False(t, v.Follow)

	require.NoError(t, s.PublishOnce())
	assert.Equal(t, 3, c.count())
}

func TestStride(t *testing.T) {
	in := make([]series.Sample, 25)
	for i := range in {
		in[i].At = int64(i)
	}
	assert.Len(t, stride(in, 30), 25)

	out := stride(in, 10)
	assert.LessOrEqual(t, len(out), 11)
	assert.Equal(t, int64(0), out[0].At)
	assert.Equal(t, int64(24), out[len(out)-1].At)
	assert.Empty(t, stride(nil, 0))
}

// ---- log ----

func TestLogSink_Every(t *testing.T) {
	var buf bytes.Buffer
	src := &fakeSource{}
	src.set(1)

	l := NewLogSink(src, log.New(&buf), 3)
	for i := 0; i < 7; i++ {
		l.BeginUpdateSequence()
		l.EndUpdateSequence()
		l.FrameCommitted()
	}

	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("frame")))
	assert.Contains(t, buf.String(), "hopper=4.5")
}
