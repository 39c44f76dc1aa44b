// internal/config/config.go
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Scope ScopeConfig `yaml:"scope"`
}

type ScopeConfig struct {
	Poll        PollConfig         `yaml:"poll"`
	Connections []ConnectionConfig `yaml:"connections"`
	Registers   []RegisterConfig   `yaml:"registers"`
	Publish     PublishConfig      `yaml:"publish"`
	Status      *StatusConfig      `yaml:"status"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	Log         LogConfig          `yaml:"log"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// ---- CONNECTION ----

type ConnectionConfig struct {
	ID        uint8  `yaml:"id"`
	Name      string `yaml:"name"`
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// nil means enabled
	Enabled *bool `yaml:"enabled"`

	MaxConsecutive uint16 `yaml:"max_consecutive"`

	// nil means little-endian
	Int32LittleEndian *bool `yaml:"int32_little_endian"`

	// Narrow a failing multi-register read to single reads instead of
	// failing the whole batch.
	SplitOnError bool `yaml:"split_on_error"`

	// Subtracted from register addresses to form the PDU address.
	AddressBase *uint16 `yaml:"address_base"`

	// Connection status block (optional, opt-in)
	StatusSlot *uint16 `yaml:"status_slot"`
}

// ---- REGISTER ----

type RegisterConfig struct {
	Address    uint16 `yaml:"address"`
	Connection uint8  `yaml:"connection"`
	Width      uint8  `yaml:"width"`
	Signed     bool   `yaml:"signed"`
}

// ---- PUBLISH ----

type PublishConfig struct {
	MQTT *MQTTConfig `yaml:"mqtt"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      byte   `yaml:"qos"`
}

// ---- STATUS ----

type StatusConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- METRICS / LOG ----

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

// Load reads and decodes a YAML file. It does not validate.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes YAML bytes. Unknown keys are rejected.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// ---- accessors ----

func (c ConnectionConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c ConnectionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c ConnectionConfig) LittleEndian() bool {
	return c.Int32LittleEndian == nil || *c.Int32LittleEndian
}

func (c ConnectionConfig) Base() uint16 {
	if c.AddressBase == nil {
		return DefaultAddressBase
	}
	return *c.AddressBase
}

// Label names the connection in logs and status blocks.
func (c ConnectionConfig) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("conn%d", c.ID)
}

func (s StatusConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

// Connection returns the connection with the given id.
func (s ScopeConfig) Connection(id uint8) (ConnectionConfig, bool) {
	for _, c := range s.Connections {
		if c.ID == id {
			return c, true
		}
	}
	return ConnectionConfig{}, false
}
