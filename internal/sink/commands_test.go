// internal/sink/commands_test.go
package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/draughts-telemetry/internal/series"
)

type fakeSubscriber struct {
	topic   string
	handler mqtt.MessageHandler
	token   *fakeToken
}

func (s *fakeSubscriber) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	s.topic, s.handler = topic, cb
	if s.token != nil {
		return s.token
	}
	return &fakeToken{}
}

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

type fakeController struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (c *fakeController) record(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, s)
	return c.err
}

func (c *fakeController) SendSetting(name string, v float32) error {
	return c.record("setting " + name)
}
func (c *fakeController) SendCommand(name string) error { return c.record("command " + name) }
func (c *fakeController) SetOverflowTarget(h float64) error {
	return c.record("overflow")
}

type fakeReplayer struct {
	mu       sync.Mutex
	from, to int64
	resumed  bool
}

func (r *fakeReplayer) StartOver(_ context.Context, from, to int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.from, r.to = from, to
	return nil
}

func (r *fakeReplayer) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumed = true
	return nil
}

func TestCommands_Parse(t *testing.T) {
	c := NewCommands("vessel", 1, nil, nil, nil, quiet())

	cmd, err := c.Parse("vessel/cmd/overflow_target", []byte(" 2.75 "))
	require.NoError(t, err)
	assert.Equal(t, Command{Kind: "overflow_target", Value: 2.75}, cmd)

	cmd, err = c.Parse("vessel/cmd/setting/pump_rpm", []byte("900"))
	require.NoError(t, err)
	assert.Equal(t, "pump_rpm", cmd.Name)
	assert.Equal(t, 900.0, cmd.Value)

	cmd, err = c.Parse("vessel/cmd/replay", []byte(`{"departure":1000,"destination":5000}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), cmd.Departure)
	assert.Equal(t, int64(5000), cmd.Destination)

	cmd, err = c.Parse("vessel/cmd/scroll", []byte("-60000"))
	require.NoError(t, err)
	assert.Equal(t, Command{Kind: "scroll", At: -60000}, cmd)

	cmd, err = c.Parse("vessel/cmd/zoom", []byte(`{"focus":5000,"factor":2}`))
	require.NoError(t, err)
	assert.Equal(t, Command{Kind: "zoom", At: 5000, Value: 2}, cmd)

	cmd, err = c.Parse("vessel/cmd/seek", []byte("1700000000000"))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), cmd.At)

	for _, bad := range []struct{ topic, payload string }{
		{"other/cmd/live", ""},
		{"vessel/cmd/scroll", "1.5"},
		{"vessel/cmd/seek", ""},
		{"vessel/cmd/zoom", `{"focus":1}`},
		{"vessel/cmd/zoom", `{"focus":1,"factor":-2}`},
		{"vessel/cmd/setting", "1"},
		{"vessel/cmd/command", ""},
		{"vessel/cmd/overflow_target", "high"},
		{"vessel/cmd/replay", "{"},
		{"vessel/cmd/reboot", ""},
	} {
		_, err := c.Parse(bad.topic, []byte(bad.payload))
		assert.Error(t, err, bad.topic)
	}
}

func TestCommands_Exec(t *testing.T) {
	ctl := &fakeController{}
	rep := &fakeReplayer{}
	c := NewCommands("vessel", 0, ctl, rep, nil, quiet())
	ctx := context.Background()

	require.NoError(t, c.Exec(ctx, Command{Kind: "overflow_target", Value: 1}))
	require.NoError(t, c.Exec(ctx, Command{Kind: "setting", Name: "a", Value: 1}))
	require.NoError(t, c.Exec(ctx, Command{Kind: "command", Name: "b"}))
	assert.Equal(t, []string{"overflow", "setting a", "command b"}, ctl.calls)

	require.NoError(t, c.Exec(ctx, Command{Kind: "replay", Departure: 1, Destination: 2}))
	assert.Equal(t, int64(2), rep.to)
	require.NoError(t, c.Exec(ctx, Command{Kind: "live"}))
	assert.True(t, rep.resumed)
}

func TestCommands_ControlDisabled(t *testing.T) {
	rep := &fakeReplayer{}
	c := NewCommands("vessel", 0, nil, rep, nil, quiet())

	assert.Error(t, c.Exec(context.Background(), Command{Kind: "command", Name: "x"}))
	// replay still works without control
	assert.NoError(t, c.Exec(context.Background(), Command{Kind: "live"}))
}

func TestCommands_ViewGestures(t *testing.T) {
	st, err := series.New(series.Config{Channels: 1, ViewSpan: 10 * time.Second})
	require.NoError(t, err)
	for i := int64(0); i <= 60; i++ {
		require.NoError(t, st.Append(i*1000, []float64{float64(i)}))
	}

	changes := 0
	c := NewCommands("vessel", 0, nil, &fakeReplayer{}, st, quiet())
	c.OnViewChange(func() { changes++ })
	ctx := context.Background()

	require.NoError(t, c.Exec(ctx, Command{Kind: "scroll", At: -20_000}))
	start, end := st.View()
	assert.Equal(t, int64(30_000), start)
	assert.Equal(t, int64(40_000), end)
	assert.False(t, st.Following())

	require.NoError(t, c.Exec(ctx, Command{Kind: "zoom", At: 35_000, Value: 2}))
	start, end = st.View()
	assert.Equal(t, int64(5000), end-start)

	require.NoError(t, c.Exec(ctx, Command{Kind: "seek", At: 12_400}))
	cur, ok := st.Cursor()
	require.True(t, ok)
	assert.Equal(t, int64(12_000), cur.At)

	require.NoError(t, c.Exec(ctx, Command{Kind: "live"}))
	assert.Equal(t, 4, changes)

	// refused gestures do not signal a change
	assert.Error(t, c.Exec(ctx, Command{Kind: "zoom", At: 0, Value: 0}))
	assert.Equal(t, 4, changes)
}

func TestCommands_ViewDisabled(t *testing.T) {
	c := NewCommands("vessel", 0, nil, &fakeReplayer{}, nil, quiet())
	assert.Error(t, c.Exec(context.Background(), Command{Kind: "scroll", At: 1}))
}

func TestCommands_SeekEmptyStore(t *testing.T) {
	st, err := series.New(series.Config{Channels: 1})
	require.NoError(t, err)
	c := NewCommands("vessel", 0, nil, &fakeReplayer{}, st, quiet())
	assert.Error(t, c.Exec(context.Background(), Command{Kind: "seek", At: 1}))
}

func TestCommands_SubscribeAndRun(t *testing.T) {
	ctl := &fakeController{}
	c := NewCommands("vessel", 1, ctl, &fakeReplayer{}, nil, quiet())
	sub := &fakeSubscriber{}
	require.NoError(t, c.Subscribe(sub))
	assert.Equal(t, "vessel/cmd/#", sub.topic)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	sub.handler(nil, fakeMessage{topic: "vessel/cmd/command/dump", payload: nil})

	require.Eventually(t, func() bool {
		ctl.mu.Lock()
		defer ctl.mu.Unlock()
		return len(ctl.calls) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestCommands_SubscribeFailure(t *testing.T) {
	c := NewCommands("vessel", 1, nil, &fakeReplayer{}, nil, quiet())
	err := c.Subscribe(&fakeSubscriber{token: &fakeToken{err: errors.New("not authorized")}})
	assert.Error(t, err)
}
