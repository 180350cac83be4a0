// Package config loads the ds1307ctl configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

type Config struct {
	Bus    BusConfig    `yaml:"bus"`
	Device DeviceConfig `yaml:"device"`
	NTP    NTPConfig    `yaml:"ntp"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Log    LogConfig    `yaml:"log"`
}

// BusConfig selects the I2C bus as periph's i2creg names it. An empty name is the
// first bus found.
type BusConfig struct {
	Name  string `yaml:"name"`
	Speed string `yaml:"speed"` // e.g. "100kHz"; empty leaves the bus alone
}

type DeviceConfig struct {
	Address  uint8  `yaml:"address"`
	SyncPin  string `yaml:"sync_pin"` // gpioreg name, optional
	Timezone string `yaml:"timezone"` // IANA name the RTC keeps its time in
}

type NTPConfig struct {
	Server  string `yaml:"server"`
	Timeout string `yaml:"timeout"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      uint8  `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
	Interval string `yaml:"interval"`
	Timeout  string `yaml:"timeout"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used for anything a file leaves out.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Address:  0x68,
			Timezone: "UTC",
		},
		NTP: NTPConfig{
			Server:  "pool.ntp.org",
			Timeout: "5s",
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "ds1307ctl",
			Topic:    "ds1307/status",
			Interval: "10s",
			Timeout:  "5s",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults and validates the result. Unknown keys are an
// error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks every field that has to be parsed before use. It does not modify c.
func Validate(c *Config) error {
	if c.Device.Address == 0 || c.Device.Address > 0x7F {
		return fmt.Errorf("device.address 0x%02x is not a 7-bit I2C address", c.Device.Address)
	}
	if _, err := c.BusSpeed(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.NTP.Server == "" {
		return errors.New("ntp.server must not be empty")
	}
	if _, err := c.NTPTimeout(); err != nil {
		return err
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos %d must be 0, 1 or 2", c.MQTT.QoS)
	}
	if c.MQTT.Topic == "" {
		return errors.New("mqtt.topic must not be empty")
	}
	if d, err := c.MQTTInterval(); err != nil {
		return err
	} else if d <= 0 {
		return fmt.Errorf("mqtt.interval %v must be positive", d)
	}
	if _, err := c.MQTTTimeout(); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// BusSpeed returns the configured bus speed, or 0 to keep the driver default.
func (c *Config) BusSpeed() (physic.Frequency, error) {
	var f physic.Frequency
	if c.Bus.Speed == "" {
		return 0, nil
	}
	if err := f.Set(c.Bus.Speed); err != nil {
		return 0, fmt.Errorf("bus.speed: %w", err)
	}
	return f, nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Device.Timezone)
	if err != nil {
		return nil, fmt.Errorf("device.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) NTPTimeout() (time.Duration, error) {
	return duration("ntp.timeout", c.NTP.Timeout)
}

func (c *Config) MQTTInterval() (time.Duration, error) {
	return duration("mqtt.interval", c.MQTT.Interval)
}

func (c *Config) MQTTTimeout() (time.Duration, error) {
	return duration("mqtt.timeout", c.MQTT.Timeout)
}

func (c *Config) LogLevel() (zapcore.Level, error) {
	l, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

func duration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
