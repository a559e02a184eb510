package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"mlesc/internal/bridge"
	"mlesc/internal/broker"
	"mlesc/internal/crypto"
	"mlesc/internal/dedup"
	"mlesc/internal/domain"
	"mlesc/internal/link"
	"mlesc/internal/relay"
)

// DefaultServer is used when no server is configured.
const DefaultServer = "wss://mles.io"

// Mode is what a run does.
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeProxy  Mode = "proxy"
	ModeMQTT   Mode = "mqtt"
)

// Duration is a time.Duration written as a string ("5s") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := time.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

// Config is the full runtime configuration.
type Config struct {
	Server       string `yaml:"server"`
	Channel      string `yaml:"channel"`
	UID          string `yaml:"uid"`
	ProxyServer  string `yaml:"proxy_server"`
	ProxyChannel string `yaml:"proxy_channel"`
	MQTTBroker   string `yaml:"mqtt_broker"`
	Insecure     bool   `yaml:"insecure"`
	MetricsAddr  string `yaml:"metrics_addr"`
	LogLevel     string `yaml:"log_level"`

	KDF       crypto.KDFParams `yaml:"kdf"`
	Reconnect ReconnectConfig  `yaml:"reconnect"`
	Dedup     DedupConfig      `yaml:"dedup"`
	Bridge    BridgeConfig     `yaml:"bridge"`
	Broker    BrokerConfig     `yaml:"broker"`
}

type ReconnectConfig struct {
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
	Jitter      float64  `yaml:"jitter"`
	MaxRetries  int      `yaml:"max_retries"`
	QueueSize   int      `yaml:"queue_size"`
	FlushGrace  Duration `yaml:"flush_grace"`
	StableAfter Duration `yaml:"stable_after"`
}

type DedupConfig struct {
	MaxEntries int      `yaml:"max_entries"`
	MaxAge     Duration `yaml:"max_age"`
}

type BridgeConfig struct {
	Grace         Duration `yaml:"grace"`
	StatsInterval Duration `yaml:"stats_interval"`
}

type BrokerConfig struct {
	Format      string   `yaml:"format"`
	ClientID    string   `yaml:"client_id"`
	Username    string   `yaml:"username"`
	KeepAlive   Duration `yaml:"keepalive"`
	PublishRate float64  `yaml:"publish_rate"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server:   DefaultServer,
		LogLevel: "info",
		KDF:      crypto.DefaultKDFParams(),
		Reconnect: ReconnectConfig{
			BaseDelay:   Duration(link.DefaultBaseDelay),
			MaxDelay:    Duration(link.DefaultMaxDelay),
			Jitter:      link.DefaultJitter,
			QueueSize:   link.DefaultQueueSize,
			FlushGrace:  Duration(link.DefaultFlushGrace),
			StableAfter: Duration(link.DefaultStableAfter),
		},
		Dedup: DedupConfig{
			MaxEntries: dedup.DefaultMaxEntries,
			MaxAge:     Duration(dedup.DefaultMaxAge),
		},
		Bridge: BridgeConfig{
			Grace:         Duration(bridge.DefaultGrace),
			StatsInterval: Duration(bridge.DefaultStatsInterval),
		},
		Broker: BrokerConfig{
			Format:      string(broker.FormatLine),
			ClientID:    "mlesc",
			KeepAlive:   Duration(broker.DefaultKeepAlive),
			PublishRate: broker.DefaultPublishRate,
		},
	}
}

// LoadFile reads path over the defaults. Unknown keys are an error.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("%w: %s: %v", domain.ErrConfig, path, err)
	}
	return cfg, nil
}

// Mode reports which mode the configuration selects.
func (c Config) Mode() Mode {
	switch {
	case c.ProxyServer != "":
		return ModeProxy
	case c.MQTTBroker != "":
		return ModeMQTT
	default:
		return ModeDirect
	}
}

// Validate reports the first problem that would stop a run before any
// connection is attempted.
func (c Config) Validate() error {
	if c.ProxyServer != "" && c.MQTTBroker != "" {
		return fmt.Errorf("%w: --proxy-server and --mqtt-broker are mutually exclusive", domain.ErrConfig)
	}
	if strings.TrimSpace(c.Channel) == "" {
		return fmt.Errorf("%w: channel is required", domain.ErrConfig)
	}
	if strings.TrimSpace(c.UID) == "" {
		return fmt.Errorf("%w: uid is required", domain.ErrConfig)
	}
	if _, err := c.dialer(c.Server, c.Channel, nil).Endpoint(); err != nil {
		return err
	}
	switch c.Mode() {
	case ModeProxy:
		if _, err := c.dialer(c.ProxyServer, c.proxyChannel(), nil).Endpoint(); err != nil {
			return err
		}
	case ModeMQTT:
		if _, err := broker.ParseBroker(c.MQTTBroker); err != nil {
			return err
		}
		if _, err := broker.ParseFormat(c.Broker.Format); err != nil {
			return err
		}
	}
	if err := c.KDF.Validate(); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level: %v", domain.ErrConfig, err)
	}
	if c.Reconnect.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must not be negative", domain.ErrConfig)
	}
	return nil
}

func (c Config) proxyChannel() string {
	if c.ProxyChannel != "" {
		return c.ProxyChannel
	}
	return c.Channel
}

func (c Config) dialer(server, channel string, serverKey []byte) *relay.Dialer {
	return &relay.Dialer{
		URL:           server,
		UID:           c.UID,
		Channel:       channel,
		ServerKey:     serverKey,
		AllowInsecure: c.Insecure,
	}
}

func (c Config) linkConfig() link.Config {
	r := c.Reconnect
	return link.Config{
		BaseDelay:   time.Duration(r.BaseDelay),
		MaxDelay:    time.Duration(r.MaxDelay),
		Jitter:      r.Jitter,
		MaxRetries:  r.MaxRetries,
		QueueSize:   r.QueueSize,
		FlushGrace:  time.Duration(r.FlushGrace),
		StableAfter: time.Duration(r.StableAfter),
	}
}
