// Package config handles letterbox configuration loading.
package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/letterbox/config.yaml, /etc/letterbox/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "letterbox", "config.yaml"))
	}

	paths = append(paths, "/etc/letterbox/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all letterbox configuration. One wake cycle reads it once
// at boot; nothing mutates it afterwards.
type Config struct {
	// MaxRetries is the retry budget shared as a policy value by the
	// network associator, the broker session and the publish cycle.
	// Each subsystem keeps its own counter.
	MaxRetries int `yaml:"max_retries"`
	// IdleTimeSec is the grace period after a successful publish before
	// the node powers down.
	IdleTimeSec int `yaml:"idle_time_sec"`

	Network  NetworkConfig  `yaml:"network"`
	Broker   BrokerConfig   `yaml:"broker"`
	Sampler  SamplerConfig  `yaml:"sampler"`
	Hardware HardwareConfig `yaml:"hardware"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text (default) or json
}

// NetworkConfig defines the wireless association settings.
type NetworkConfig struct {
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
	// Interface is the wireless interface to watch (default: wlan0).
	Interface string `yaml:"interface"`
	// ConnectCommand, if set, is run once per association attempt.
	// $SSID and $PASSPHRASE are expanded in each argument. When empty
	// the system supplicant is expected to associate on its own.
	ConnectCommand []string `yaml:"connect_command"`
	// LowPower suppresses the status indicator to save energy.
	LowPower        bool `yaml:"low_power"`
	BlinkIntervalMs int  `yaml:"blink_interval_ms"` // default 250
	BlinksPerStrike int  `yaml:"blinks_per_strike"` // default 10
}

// BrokerConfig defines the MQTT broker connection and the report topic.
type BrokerConfig struct {
	URL               string `yaml:"url"` // mqtt://host:1883, mqtts://host:8883
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	Topic             string `yaml:"topic"`
	ClientPrefix      string `yaml:"client_prefix"`
	QoS               int    `yaml:"qos"`
	Retain            bool   `yaml:"retain"`
	KeepAliveSec      int    `yaml:"keep_alive_sec"`
	ConnectTimeoutSec int    `yaml:"connect_timeout_sec"`
	BackoffSec        int    `yaml:"backoff_sec"`         // default 5
	PublishIntervalMs int    `yaml:"publish_interval_ms"` // default 2000
}

// SamplerConfig defines how the supply voltage is read.
type SamplerConfig struct {
	// Device is the IIO sysfs file holding the raw ADC value.
	Device         string  `yaml:"device"`
	Samples        int     `yaml:"samples"`
	SettleMs       int     `yaml:"settle_ms"`
	ReferenceVolts float64 `yaml:"reference_volts"`
	Resolution     int     `yaml:"resolution"`
	// PayloadWidth is the number of characters of the formatted
	// reading that are published. The receiving parser expects 4.
	PayloadWidth int `yaml:"payload_width"`
}

// HardwareConfig defines the GPIO lines of the power latch board.
type HardwareConfig struct {
	// Simulate replaces all board I/O with an in-memory board that logs
	// every change. Useful on a workstation.
	Simulate      bool   `yaml:"simulate"`
	Chip          string `yaml:"chip"`
	IndicatorLine int    `yaml:"indicator_line"`
	PowerHoldLine int    `yaml:"power_hold_line"`
	// PowerOff enables the software power-off fallback. Disable it when
	// running unprivileged.
	PowerOff bool `yaml:"power_off"`
	// SimulatedRaw is the ADC value the simulated board reports.
	SimulatedRaw int `yaml:"simulated_raw"`
}

// MetricsConfig defines where the per-cycle metrics go. They are always
// logged at shutdown; a Pushgateway is optional.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`      // default: letterbox
	Instance       string `yaml:"instance"` // default: hostname
	PushTimeoutSec int    `yaml:"push_timeout_sec"`
}

// Load reads configuration from a YAML file. Settings absent from the
// file keep their [Default] value; settings present are taken as
// written, zero included.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration with every tunable set to the values
// the reference board was calibrated with.
func Default() *Config {
	return &Config{
		MaxRetries:  5,
		IdleTimeSec: 10,
		Network: NetworkConfig{
			Interface:       "wlan0",
			BlinkIntervalMs: 250,
			BlinksPerStrike: 10,
		},
		Broker: BrokerConfig{
			ClientPrefix:      "letterbox-",
			KeepAliveSec:      15,
			ConnectTimeoutSec: 10,
			BackoffSec:        5,
			PublishIntervalMs: 2000,
		},
		Sampler: SamplerConfig{
			Device:         "/sys/bus/iio/devices/iio:device0/in_voltage0_raw",
			Samples:        10,
			SettleMs:       5,
			ReferenceVolts: 3.3,
			Resolution:     1024,
			PayloadWidth:   4,
		},
		Hardware: HardwareConfig{
			Chip:          "gpiochip0",
			IndicatorLine: 5,
			PowerHoldLine: 12,
			PowerOff:      true,
			SimulatedRaw:  700,
		},
		Metrics: MetricsConfig{
			Job:            "letterbox",
			PushTimeoutSec: 5,
		},
	}
}

// Validate reports every setting that would prevent a wake cycle from
// completing. All problems are joined into one error.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries))
	}
	if c.IdleTimeSec < 0 {
		errs = append(errs, fmt.Errorf("idle_time_sec must not be negative, got %d", c.IdleTimeSec))
	}
	if c.Network.SSID == "" {
		errs = append(errs, errors.New("network.ssid is required"))
	}
	if c.Broker.URL == "" {
		errs = append(errs, errors.New("broker.url is required"))
	}
	if c.Broker.Topic == "" {
		errs = append(errs, errors.New("broker.topic is required"))
	}
	if c.Broker.QoS < 0 || c.Broker.QoS > 2 {
		errs = append(errs, fmt.Errorf("broker.qos must be 0, 1 or 2, got %d", c.Broker.QoS))
	}
	// The CONNECT packet carries keep-alive as a 16-bit field.
	if c.Broker.KeepAliveSec < 0 || c.Broker.KeepAliveSec > math.MaxUint16 {
		errs = append(errs, fmt.Errorf("broker.keep_alive_sec must be between 0 and %d, got %d", math.MaxUint16, c.Broker.KeepAliveSec))
	}
	if c.Sampler.PayloadWidth < 1 {
		errs = append(errs, fmt.Errorf("sampler.payload_width must be at least 1, got %d", c.Sampler.PayloadWidth))
	}
	if c.Sampler.Resolution < 1 {
		errs = append(errs, fmt.Errorf("sampler.resolution must be at least 1, got %d", c.Sampler.Resolution))
	}
	if c.Sampler.ReferenceVolts <= 0 {
		errs = append(errs, fmt.Errorf("sampler.reference_volts must be positive, got %g", c.Sampler.ReferenceVolts))
	}
	if c.Hardware.IndicatorLine < 0 || c.Hardware.PowerHoldLine < 0 {
		errs = append(errs, fmt.Errorf("hardware lines must not be negative, got indicator %d and power hold %d",
			c.Hardware.IndicatorLine, c.Hardware.PowerHoldLine))
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("log_level: %w", err))
		}
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if c.Metrics.PushgatewayURL != "" {
		if u, err := url.Parse(c.Metrics.PushgatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("metrics.pushgateway_url must be an absolute URL, got %q", c.Metrics.PushgatewayURL))
		}
	}
	return errors.Join(errs...)
}

// IdleTime returns the post-publish grace period.
func (c *Config) IdleTime() time.Duration {
	return time.Duration(c.IdleTimeSec) * time.Second
}

// BlinkInterval returns the on and off time of one indicator blink.
func (n NetworkConfig) BlinkInterval() time.Duration {
	return time.Duration(n.BlinkIntervalMs) * time.Millisecond
}

// Backoff returns the delay after a failed broker handshake.
func (b BrokerConfig) Backoff() time.Duration {
	return time.Duration(b.BackoffSec) * time.Second
}

// PublishInterval returns the minimum spacing between publish attempts.
func (b BrokerConfig) PublishInterval() time.Duration {
	return time.Duration(b.PublishIntervalMs) * time.Millisecond
}

// ConnectTimeout bounds a single dial plus CONNECT/CONNACK exchange.
func (b BrokerConfig) ConnectTimeout() time.Duration {
	return time.Duration(b.ConnectTimeoutSec) * time.Second
}

// Settle returns the delay between two ADC reads.
func (s SamplerConfig) Settle() time.Duration {
	return time.Duration(s.SettleMs) * time.Millisecond
}

// PushTimeout bounds one Pushgateway request.
func (m MetricsConfig) PushTimeout() time.Duration {
	return time.Duration(m.PushTimeoutSec) * time.Second
}
