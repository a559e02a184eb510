package broker

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"mlesc/internal/domain"
)

const (
	DefaultKeepAlive      = 60 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultPublishRate    = 100 // per second

	qos          = 1
	quiesceMS    = 250
	inboundQueue = 256
)

// ErrConnectionLost is returned by reads after the broker dropped us.
var ErrConnectionLost = errors.New("broker: connection lost")

// ParseBroker turns mqtt://host[:port] or mqtts://host[:port] into the
// tcp:// or ssl:// server URI paho expects, filling in the default port.
func ParseBroker(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: broker url: %v", domain.ErrConfig, err)
	}
	var scheme, port string
	switch u.Scheme {
	case "mqtt", "tcp":
		scheme, port = "tcp", "1883"
	case "mqtts", "ssl", "tls":
		scheme, port = "ssl", "8883"
	default:
		return "", fmt.Errorf("%w: broker url %q must use mqtt:// or mqtts://", domain.ErrConfig, raw)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: broker url %q has no host", domain.ErrConfig, raw)
	}
	if p := u.Port(); p != "" {
		port = p
	}
	return scheme + "://" + net.JoinHostPort(u.Hostname(), port), nil
}

// Dialer connects to an MQTT broker and subscribes to one topic.
type Dialer struct {
	Broker         string
	Topic          string
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	PublishRate    float64
	TLS            *tls.Config
	Log            zerolog.Logger
}

// Dial connects, subscribes at QoS 1 and returns the connection.
func (d *Dialer) Dial(ctx context.Context) (domain.Transport, error) {
	server, err := ParseBroker(d.Broker)
	if err != nil {
		return nil, err
	}
	keepAlive := d.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	perSec := d.PublishRate
	if perSec <= 0 {
		perSec = DefaultPublishRate
	}

	c := &Conn{
		topic:   d.Topic,
		in:      make(chan []byte, inboundQueue),
		lost:    make(chan error, 1),
		closed:  make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
		log:     d.Log.With().Str("component", "mqtt").Str("topic", d.Topic).Logger(),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(server).
		SetClientID(clientID(d.ClientID)).
		SetKeepAlive(keepAlive).
		SetConnectTimeout(timeout).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(true).
		SetConnectionLostHandler(c.onLost)
	if d.Username != "" {
		opts.SetUsername(d.Username).SetPassword(d.Password)
	}
	if d.TLS != nil {
		opts.SetTLSConfig(d.TLS)
	}

	c.client = mqtt.NewClient(opts)
	if err := wait(ctx, c.client.Connect()); err != nil {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: mqtt connect %s: %v", domain.ErrConnection, server, err)
	}
	if err := wait(ctx, c.client.Subscribe(d.Topic, qos, c.onMessage)); err != nil {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: mqtt subscribe %q: %v", domain.ErrConnection, d.Topic, err)
	}
	c.log.Info().Str("broker", server).Msg("subscribed")
	return c, nil
}

// Conn is one MQTT session bound to one topic.
type Conn struct {
	client  mqtt.Client
	topic   string
	limiter *rate.Limiter
	log     zerolog.Logger

	in     chan []byte
	lost   chan error
	once   sync.Once
	closed chan struct{}
}

func (c *Conn) onMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := append([]byte(nil), msg.Payload()...)
	select {
	case c.in <- payload:
	case <-c.closed:
	}
}

func (c *Conn) onLost(_ mqtt.Client, err error) {
	select {
	case c.lost <- err:
	default:
	}
}

// ReadFrame returns the next payload published on the topic.
func (c *Conn) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case p := <-c.in:
		return p, nil
	case err := <-c.lost:
		select {
		case c.lost <- err:
		default:
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	case <-c.closed:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WriteFrame publishes frame at QoS 1, paced by the publish rate.
func (c *Conn) WriteFrame(ctx context.Context, frame []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if !c.client.IsConnectionOpen() {
		return ErrConnectionLost
	}
	return wait(ctx, c.client.Publish(c.topic, qos, false, frame))
}

// Close disconnects from the broker.
func (c *Conn) Close() error {
	c.once.Do(func() {
		close(c.closed)
		c.client.Disconnect(quiesceMS)
	})
	return nil
}

func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// clientID makes every connection unique so two bridges sharing a base id do
// not kick each other off the broker.
func clientID(base string) string {
	if base == "" {
		base = "mlesc"
	}
	return base + "-" + uuid.NewString()[:8]
}

var (
	_ domain.Dialer    = (*Dialer)(nil)
	_ domain.Transport = (*Conn)(nil)
)
