// internal/config/normalize.go
package config

import (
	"time"

	"github.com/tamzrod/draughts-telemetry/internal/schema"
	"github.com/tamzrod/draughts-telemetry/internal/series"
	"github.com/tamzrod/draughts-telemetry/internal/session"
)

const (
	defaultPLCID       = "plc"
	defaultTimeoutMs   = 1000
	defaultIntervalMs  = 1000
	defaultViewSpanSec = 8 * 3600
	defaultKeepDays    = 30
	defaultLogEvery    = 60

	defaultMQTTMinIntervalMs = 250
	defaultMQTTTimeoutMs     = 2000
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ---- source ----
	if cfg.PLC.ID == "" {
		cfg.PLC.ID = defaultPLCID
	}
	if cfg.PLC.TimeoutMs == 0 {
		cfg.PLC.TimeoutMs = defaultTimeoutMs
	}
	if cfg.PLC.IntervalMs == 0 {
		cfg.PLC.IntervalMs = defaultIntervalMs
	}
	// device name is stored in 8 registers
	if len(cfg.PLC.DeviceName) > 16 {
		cfg.PLC.DeviceName = cfg.PLC.DeviceName[:16]
	}
	if cfg.PLC.DeviceName == "" {
		cfg.PLC.DeviceName = cfg.PLC.ID
	}

	for i := range cfg.Blocks {
		if cfg.Blocks[i].FC == 0 {
			cfg.Blocks[i].FC = 3
		}
	}

	// ---- control ----
	if cfg.Control.Endpoint == "" {
		cfg.Control.Endpoint = cfg.PLC.Endpoint
	}
	if cfg.Control.UnitID == nil {
		id := cfg.PLC.UnitID
		cfg.Control.UnitID = &id
	}
	if cfg.Control.TimeoutMs == 0 {
		cfg.Control.TimeoutMs = cfg.PLC.TimeoutMs
	}

	// ---- schema ----
	if cfg.Schema.Port == nil {
		b := schema.DefaultBase(schema.Port)
		cfg.Schema.Port = &b
	}
	if cfg.Schema.Starboard == nil {
		b := schema.DefaultBase(schema.Starboard)
		cfg.Schema.Starboard = &b
	}

	// ---- calibration ----
	def := session.DefaultRanges()
	r := &cfg.Ranges
	for _, p := range []struct{ v, d *float64 }{
		{&r.DredgingSpeed, &def.DredgingSpeed},
		{&r.FlowVolume, &def.FlowVolume},
		{&r.FlowSpeed, &def.FlowSpeed},
		{&r.VacuumPressure, &def.VacuumPressure},
		{&r.DragPullForce1, &def.DragPullForce1},
		{&r.DragPullForce2, &def.DragPullForce2},
		{&r.HopperHeight, &def.HopperHeight},
		{&r.Displacement, &def.Displacement},
		{&r.Payload, &def.Payload},
		{&r.EarthWork, &def.EarthWork},
		{&r.Capacity, &def.Capacity},
	} {
		if *p.v == 0 {
			*p.v = *p.d
		}
	}

	// ---- series / history ----
	if cfg.Series.Rotation == "" {
		cfg.Series.Rotation = "daily"
	}
	if cfg.Series.ViewSpanSec == 0 {
		cfg.Series.ViewSpanSec = defaultViewSpanSec
	}
	if cfg.Series.Timezone == "" {
		cfg.Series.Timezone = "Local"
	}
	if cfg.History.Driver == "" {
		cfg.History.Driver = "sqlite3"
	}
	if cfg.History.Enabled && cfg.History.KeepDays == 0 {
		cfg.History.KeepDays = defaultKeepDays
	}

	// ---- outputs ----
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "draughts-" + cfg.PLC.ID
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "draughts/" + cfg.PLC.ID
	}
	if cfg.MQTT.MinIntervalMs == 0 {
		cfg.MQTT.MinIntervalMs = defaultMQTTMinIntervalMs
	}
	if cfg.MQTT.TimeoutMs == 0 {
		cfg.MQTT.TimeoutMs = defaultMQTTTimeoutMs
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Every == 0 {
		cfg.Log.Every = defaultLogEvery
	}
}

// Tables builds the hull and per-side schemas from the configured bases,
// falling back to the factory bases.
func (c *Config) Tables() (hull, ps, sb *schema.Table) {
	pb, sbb := schema.DefaultBase(schema.Port), schema.DefaultBase(schema.Starboard)
	if c.Schema.Port != nil {
		pb = *c.Schema.Port
	}
	if c.Schema.Starboard != nil {
		sbb = *c.Schema.Starboard
	}
	return schema.Hull(), schema.Build(schema.Port, pb), schema.Build(schema.Starboard, sbb)
}

// SeriesConfig converts the time series section. Call after Normalize.
func (c *Config) SeriesConfig() series.Config {
	rot, _ := series.ParseRotation(c.Series.Rotation)
	loc, err := time.LoadLocation(c.Series.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return series.Config{
		Channels: series.NumChannels,
		Rotation: rot,
		Window:   time.Duration(c.Series.WindowSec) * time.Second,
		ViewSpan: time.Duration(c.Series.ViewSpanSec) * time.Second,
		Location: loc,
	}
}
