// internal/sink/commands.go
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tamzrod/draughts-telemetry/internal/series"
)

// Subscriber is the part of mqtt.Client the command inlet listens through.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Controller forwards operator writes to the PLC.
type Controller interface {
	SendSetting(name string, value float32) error
	SendCommand(name string) error
	SetOverflowTarget(height float64) error
}

// Replayer switches the session between live and replay.
type Replayer interface {
	StartOver(ctx context.Context, departure, destination int64) error
	Resume() error
}

// Viewer moves the time series view and read cursor.
type Viewer interface {
	ScrollView(delta int64)
	ZoomView(focus int64, factor float64) error
	Seek(at int64) (series.Sample, bool)
}

// Command is one decoded operator request.
type Command struct {
	Kind  string // overflow_target | setting | command | replay | live | scroll | zoom | seek
	Name  string
	Value float64

	Departure   int64
	Destination int64

	// scroll delta, zoom focus or seek target (unix ms)
	At int64
}

// Commands turns messages under <prefix>/cmd/ into control and replay calls.
//
//	<prefix>/cmd/overflow_target   "2.75"
//	<prefix>/cmd/setting/<name>    "1.5"
//	<prefix>/cmd/command/<name>    (payload ignored)
//	<prefix>/cmd/replay            {"departure":ms,"destination":ms}
//	<prefix>/cmd/live              (payload ignored)
//	<prefix>/cmd/scroll            "-60000" (ms, negative = back in time)
//	<prefix>/cmd/zoom              {"focus":ms,"factor":2}
//	<prefix>/cmd/seek              "1700000000000"
//
// Messages are queued by the MQTT callback and executed by Run, so a slow
// history fetch never blocks the client's router.
type Commands struct {
	prefix string
	qos    byte
	ctl    Controller // nil disables PLC writes
	rep    Replayer
	view   Viewer // nil disables view gestures
	log    *log.Logger

	changed func()
	queue   chan Command
}

// NewCommands creates an inlet. ctl and view may be nil when disabled.
func NewCommands(prefix string, qos byte, ctl Controller, rep Replayer, view Viewer, logger *log.Logger) *Commands {
	if logger == nil {
		logger = log.Default()
	}
	return &Commands{
		prefix:  prefix + "/cmd/",
		qos:     qos,
		ctl:     ctl,
		rep:     rep,
		view:    view,
		log:     logger,
		changed: func() {},
		queue:   make(chan Command, 16),
	}
}

// OnViewChange registers fn to run after a command moved the view.
func (c *Commands) OnViewChange(fn func()) {
	if fn != nil {
		c.changed = fn
	}
}

// Subscribe registers the inlet on <prefix>/cmd/#.
func (c *Commands) Subscribe(sub Subscriber) error {
	token := sub.Subscribe(c.prefix+"#", c.qos, func(_ mqtt.Client, m mqtt.Message) {
		c.Enqueue(m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(timeoutOr(0)) {
		return errors.New("subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	return nil
}

// Enqueue decodes and queues one message. Malformed or overflowing
// requests are logged and dropped.
func (c *Commands) Enqueue(topic string, payload []byte) {
	cmd, err := c.Parse(topic, payload)
	if err != nil {
		c.log.Warn("command rejected", "topic", topic, "err", err)
		return
	}
	select {
	case c.queue <- cmd:
	default:
		c.log.Warn("command dropped, queue full", "topic", topic)
	}
}

// Parse decodes one message.
func (c *Commands) Parse(topic string, payload []byte) (Command, error) {
	rest, ok := strings.CutPrefix(topic, c.prefix)
	if !ok {
		return Command{}, fmt.Errorf("topic outside %s", c.prefix)
	}
	kind, name, _ := strings.Cut(rest, "/")
	cmd := Command{Kind: kind, Name: name}

	switch kind {
	case "overflow_target", "setting":
		if kind == "setting" && name == "" {
			return Command{}, errors.New("setting name required")
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
		if err != nil {
			return Command{}, fmt.Errorf("value: %w", err)
		}
		cmd.Value = v
	case "command":
		if name == "" {
			return Command{}, errors.New("command name required")
		}
	case "replay":
		var iv struct {
			Departure   int64 `json:"departure"`
			Destination int64 `json:"destination"`
		}
		if err := json.Unmarshal(payload, &iv); err != nil {
			return Command{}, fmt.Errorf("replay interval: %w", err)
		}
		cmd.Departure, cmd.Destination = iv.Departure, iv.Destination
	case "live":
	case "scroll", "seek":
		v, err := strconv.ParseInt(strings.TrimSpace(string(payload)), 10, 64)
		if err != nil {
			return Command{}, fmt.Errorf("%s: %w", kind, err)
		}
		cmd.At = v
	case "zoom":
		var z struct {
			Focus  int64   `json:"focus"`
			Factor float64 `json:"factor"`
		}
		if err := json.Unmarshal(payload, &z); err != nil {
			return Command{}, fmt.Errorf("zoom: %w", err)
		}
		if !(z.Factor > 0) {
			return Command{}, fmt.Errorf("zoom factor must be > 0 (got %v)", z.Factor)
		}
		cmd.At, cmd.Value = z.Focus, z.Factor
	default:
		return Command{}, fmt.Errorf("unknown command kind %q", kind)
	}
	return cmd, nil
}

// Run executes queued commands until ctx is done.
func (c *Commands) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-c.queue:
			if err := c.Exec(ctx, cmd); err != nil {
				c.log.Warn("command failed", "kind", cmd.Kind, "name", cmd.Name, "err", err)
			}
		}
	}
}

// Exec runs one command.
func (c *Commands) Exec(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case "replay":
		return c.viewed(c.rep.StartOver(ctx, cmd.Departure, cmd.Destination))
	case "live":
		return c.viewed(c.rep.Resume())
	case "scroll", "zoom", "seek":
		return c.viewed(c.gesture(cmd))
	}

	if c.ctl == nil {
		return errors.New("control disabled")
	}
	switch cmd.Kind {
	case "overflow_target":
		return c.ctl.SetOverflowTarget(cmd.Value)
	case "setting":
		return c.ctl.SendSetting(cmd.Name, float32(cmd.Value))
	case "command":
		return c.ctl.SendCommand(cmd.Name)
	default:
		return fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
}

func (c *Commands) gesture(cmd Command) error {
	if c.view == nil {
		return errors.New("view disabled")
	}
	switch cmd.Kind {
	case "scroll":
		c.view.ScrollView(cmd.At)
	case "zoom":
		return c.view.ZoomView(cmd.At, cmd.Value)
	case "seek":
		if _, ok := c.view.Seek(cmd.At); !ok {
			return errors.New("seek: no retained sample")
		}
	}
	return nil
}

func (c *Commands) viewed(err error) error {
	if err == nil {
		c.changed()
	}
	return err
}
