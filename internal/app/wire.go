package app

import (
	"time"

	"github.com/rs/zerolog"

	"mlesc/internal/bridge"
	"mlesc/internal/broker"
	"mlesc/internal/crypto"
	"mlesc/internal/dedup"
	"mlesc/internal/protocol/channel"
	"mlesc/internal/services/session"
)

// Wire is the dependency graph for one run.
type Wire struct {
	Config Config
	Mode   Mode
	Log    zerolog.Logger
	Cache  *dedup.Cache

	// Primary is the Mles channel given by --server and --channel.
	Primary *session.Service
	// Secondary is the far side of a bridge; nil in direct mode.
	Secondary *session.Service
	// Bridge joins Primary and Secondary; nil in direct mode.
	Bridge *bridge.Controller

	codecs []*channel.Codec
}

// NewWire validates cfg, derives the session keys and builds every component.
// Secret bytes in secrets are not retained.
func NewWire(cfg Config, secrets Secrets, log zerolog.Logger) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &Wire{
		Config: cfg,
		Mode:   cfg.Mode(),
		Log:    log,
		Cache: dedup.New(dedup.Config{
			MaxEntries: cfg.Dedup.MaxEntries,
			MaxAge:     time.Duration(cfg.Dedup.MaxAge),
		}),
	}
	serverKey := append([]byte(nil), secrets.ServerKey...)
	lc := cfg.linkConfig()

	primary, err := w.codec(secrets.Shared, cfg.Channel)
	if err != nil {
		return nil, err
	}

	switch w.Mode {
	case ModeDirect:
		w.Primary = session.New("mles", cfg.Channel, cfg.dialer(cfg.Server, cfg.Channel, serverKey),
			primary, lc, log, session.Announce(cfg.UID))
		return w, nil

	case ModeProxy:
		ch := cfg.proxyChannel()
		far, err := w.codec(secrets.proxy(), ch)
		if err != nil {
			w.Close()
			return nil, err
		}
		w.Primary = session.New("mles", cfg.Channel, cfg.dialer(cfg.Server, cfg.Channel, serverKey), primary, lc, log)
		w.Secondary = session.New("proxy", ch, cfg.dialer(cfg.ProxyServer, ch, serverKey), far, lc, log)

	case ModeMQTT:
		format, err := broker.ParseFormat(cfg.Broker.Format)
		if err != nil {
			w.Close()
			return nil, err
		}
		d := &broker.Dialer{
			Broker:      cfg.MQTTBroker,
			Topic:       cfg.Channel,
			ClientID:    cfg.Broker.ClientID,
			Username:    cfg.Broker.Username,
			Password:    secrets.MQTTPassword,
			KeepAlive:   time.Duration(cfg.Broker.KeepAlive),
			PublishRate: cfg.Broker.PublishRate,
			Log:         log,
		}
		w.Primary = session.New("mles", cfg.Channel, cfg.dialer(cfg.Server, cfg.Channel, serverKey), primary, lc, log)
		w.Secondary = session.New("mqtt", cfg.Channel, d, broker.NewAdapter(format, cfg.Channel), lc, log)
	}

	w.Bridge = bridge.New(w.Primary, w.Secondary, w.Cache, bridge.Config{
		Grace:         time.Duration(cfg.Bridge.Grace),
		StatsInterval: time.Duration(cfg.Bridge.StatsInterval),
	}, log)
	return w, nil
}

func (w *Wire) codec(secret []byte, ch string) (*channel.Codec, error) {
	key, err := crypto.DeriveSessionKey(secret, ch, w.Config.KDF)
	if err != nil {
		return nil, err
	}
	c, err := channel.NewCodec(key, ch)
	if err != nil {
		key.Wipe()
		return nil, err
	}
	w.codecs = append(w.codecs, c)
	w.Log.Info().Str("channel", ch).Str("fingerprint", key.Fingerprint()).Msg("session key derived")
	return c, nil
}

// Close wipes every session key. Call it after Run has returned.
func (w *Wire) Close() {
	for _, c := range w.codecs {
		c.Close()
	}
	w.codecs = nil
}
