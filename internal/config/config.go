// internal/config/config.go
package config

import (
	"github.com/tamzrod/draughts-telemetry/internal/schema"
	"github.com/tamzrod/draughts-telemetry/internal/session"
)

type Config struct {
	PLC     PLCConfig      `yaml:"plc"`
	Blocks  []BlockConfig  `yaml:"blocks"`
	Control ControlConfig  `yaml:"control"`
	Schema  SchemaConfig   `yaml:"schema"`
	Ranges  session.Ranges `yaml:"ranges"`
	Series  SeriesConfig   `yaml:"series"`
	History HistoryConfig  `yaml:"history"`
	MQTT    MQTTConfig     `yaml:"mqtt"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Log     LogConfig      `yaml:"log"`
}

// ---- SOURCE ----

type PLCConfig struct {
	ID         string `yaml:"id"`
	Endpoint   string `yaml:"endpoint"`
	UnitID     uint8  `yaml:"unit_id"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	IntervalMs int    `yaml:"interval_ms"`

	// Daemon status block written back into the PLC (optional, opt-in)
	StatusAddress *uint16 `yaml:"status_address"`
	DeviceName    string  `yaml:"device_name"`
}

// ---- READ GEOMETRY ----

// BlockConfig maps one data block onto a register range.
type BlockConfig struct {
	Name     string `yaml:"name"` // DB2 | DB203 | DB4 | DB205 | DB20
	FC       uint8  `yaml:"fc"`
	Address  uint16 `yaml:"address"`
	Quantity uint16 `yaml:"quantity"` // registers
}

// ---- CONTROL ----

// ControlConfig addresses settings (float registers) and commands (coils).
type ControlConfig struct {
	Enabled   bool              `yaml:"enabled"`
	Endpoint  string            `yaml:"endpoint"` // defaults to plc.endpoint
	UnitID    *uint8            `yaml:"unit_id"`  // defaults to plc.unit_id
	TimeoutMs int               `yaml:"timeout_ms"`
	Settings  map[string]uint16 `yaml:"settings"`
	Commands  map[string]uint16 `yaml:"commands"`
}

// ---- SCHEMA ----

type SchemaConfig struct {
	Port      *schema.Base `yaml:"ps"`
	Starboard *schema.Base `yaml:"sb"`
}

// ---- TIME SERIES ----

type SeriesConfig struct {
	Rotation    string `yaml:"rotation"` // none | hourly | daily
	WindowSec   int    `yaml:"window_sec"`
	ViewSpanSec int    `yaml:"view_span_sec"`
	Timezone    string `yaml:"timezone"`
}

// ---- HISTORY ----

type HistoryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Driver   string `yaml:"driver"` // sqlite3 (default) | postgres
	Path     string `yaml:"path"`   // sqlite3
	DSN      string `yaml:"dsn"`    // postgres
	KeepDays int    `yaml:"keep_days"`
	Buffer   int    `yaml:"buffer"`
	Batch    int    `yaml:"batch"`
	FlushMs  int    `yaml:"flush_ms"`
}

// ---- OUTPUTS ----

type MQTTConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Broker        string `yaml:"broker"`
	ClientID      string `yaml:"client_id"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	TopicPrefix   string `yaml:"topic_prefix"`
	QoS           byte   `yaml:"qos"`
	Retained      bool   `yaml:"retained"`
	MinIntervalMs int    `yaml:"min_interval_ms"`
	TimeoutMs     int    `yaml:"timeout_ms"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the endpoint
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Every  int    `yaml:"every"` // log one frame summary out of every N
}
