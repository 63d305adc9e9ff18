// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package groundstation

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/southspace/lstrelay/pkg/openlst"
	"github.com/southspace/lstrelay/pkg/relay"
	"github.com/southspace/lstrelay/pkg/tmtc"
)

// DefaultConfigFile is read when no config path is given
const DefaultConfigFile = "lstrelay.toml"

// Bus kinds
const (
	BusNATS = "nats"
	BusMQTT = "mqtt"
)

// Duration is a time.Duration written as a string ("3s") in config files
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the relay service configuration
type Config struct {
	Connect  bool         `toml:"connect"`
	LogLevel string       `toml:"log_level"`
	Serial   SerialConfig `toml:"serial"`
	Bus      BusConfig    `toml:"bus"`
	Relay    RelayConfig  `toml:"relay"`
	Poll     PollConfig   `toml:"poll"`
	Beacons  []string     `toml:"beacons"`
}

// SerialConfig selects the transceiver transport. URL, when set, points at a
// WebSocket serial bridge and takes precedence over Port.
type SerialConfig struct {
	Port string `toml:"port"`
	Baud int    `toml:"baud"`
	URL  string `toml:"url"`
	HWID uint16 `toml:"hwid"`
}

// BusConfig configures the message bus connection
type BusConfig struct {
	Kind               string   `toml:"kind"`
	URL                string   `toml:"url"`
	User               string   `toml:"user"`
	Password           string   `toml:"password"`
	ClientName         string   `toml:"client_name"`
	TopicPrefix        string   `toml:"topic_prefix"`
	QoS                int      `toml:"qos"`
	Timeout            Duration `toml:"timeout"`
	ReconnectDelay     Duration `toml:"reconnect_delay"`
	InsecureSkipVerify bool     `toml:"insecure_skip_verify"`
}

// RelayConfig sizes the relay queue
type RelayConfig struct {
	QueueSize    int      `toml:"queue_size"`
	DrainTimeout Duration `toml:"drain_timeout"`
}

// PollConfig configures telemetry polling
type PollConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() Config {
	return Config{
		Connect:  true,
		LogLevel: "info",
		Serial: SerialConfig{
			Port: "/dev/ttyUSB0",
			Baud: 115200,
			HWID: openlst.DefaultHWID,
		},
		Bus: BusConfig{
			Kind:           BusNATS,
			URL:            "nats://127.0.0.1:4222",
			User:           "nats",
			Password:       "nats",
			ClientName:     "lstrelay",
			Timeout:        Duration{5 * time.Second},
			ReconnectDelay: Duration{relay.DefaultReconnectDelay},
		},
		Relay: RelayConfig{
			QueueSize:    relay.DefaultCapacity,
			DrainTimeout: Duration{DefaultDrainTimeout},
		},
		Poll: PollConfig{
			Enabled:  true,
			Interval: Duration{DefaultPollInterval},
		},
		Beacons: tmtc.Names(),
	}
}

// LoadConfig reads path over the defaults. A missing file yields the
// defaults unless mustExist is set.
func LoadConfig(path string, mustExist bool) (Config, error) {
	cfg := DefaultConfig()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !mustExist {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting
func (c Config) Validate() error {
	var errs []error

	if c.Serial.URL == "" {
		if c.Serial.Port == "" {
			errs = append(errs, errors.New("serial.port is required"))
		}
		if c.Serial.Baud <= 0 {
			errs = append(errs, fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud))
		}
	}

	if c.Connect {
		switch c.Bus.Kind {
		case BusNATS, BusMQTT:
		default:
			errs = append(errs, fmt.Errorf("bus.kind must be %q or %q, got %q", BusNATS, BusMQTT, c.Bus.Kind))
		}
		if c.Bus.URL == "" {
			errs = append(errs, errors.New("bus.url is required"))
		}
		if c.Bus.QoS < 0 || c.Bus.QoS > 2 {
			errs = append(errs, fmt.Errorf("bus.qos must be 0, 1 or 2, got %d", c.Bus.QoS))
		}
		if c.Bus.ReconnectDelay.Duration <= 0 {
			errs = append(errs, errors.New("bus.reconnect_delay must be positive"))
		}
		if c.Relay.QueueSize <= 0 {
			errs = append(errs, fmt.Errorf("relay.queue_size must be positive, got %d", c.Relay.QueueSize))
		}
	}

	if c.Poll.Enabled && c.Poll.Interval.Duration <= 0 {
		errs = append(errs, errors.New("poll.interval must be positive"))
	}

	seen := make(map[string]bool, len(c.Beacons))
	for _, name := range c.Beacons {
		if _, ok := tmtc.Lookup(name); !ok {
			errs = append(errs, fmt.Errorf("unknown beacon %q (known: %s)", name, strings.Join(tmtc.Names(), ", ")))
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("beacon %q listed twice", name))
		}
		seen[name] = true
	}

	return errors.Join(errs...)
}

// Dialer builds the bus client described by the config
func (c BusConfig) Dialer() (relay.Dialer, error) {
	switch c.Kind {
	case BusNATS:
		return &relay.NATSDialer{
			URL:                c.URL,
			User:               c.User,
			Password:           c.Password,
			Name:               c.ClientName,
			Timeout:            c.Timeout.Duration,
			InsecureSkipVerify: c.InsecureSkipVerify,
		}, nil
	case BusMQTT:
		return &relay.MQTTDialer{
			URL:                c.URL,
			ClientID:           c.ClientName,
			User:               c.User,
			Password:           c.Password,
			TopicPrefix:        c.TopicPrefix,
			QoS:                byte(c.QoS),
			Timeout:            c.Timeout.Duration,
			InsecureSkipVerify: c.InsecureSkipVerify,
		}, nil
	}
	return nil, fmt.Errorf("unknown bus kind %q", c.Kind)
}
