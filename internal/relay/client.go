package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mlesc/internal/crypto"
	"mlesc/internal/domain"
)

const (
	// Subprotocol is negotiated on every Mles WebSocket.
	Subprotocol = "mles-websocket"

	// MaxFrameSize caps inbound WebSocket messages.
	MaxFrameSize = 1 << 20

	DefaultHandshakeTimeout = 10 * time.Second

	closeWait = time.Second
)

// JoinMessage is the plaintext first frame of every connection.
type JoinMessage struct {
	UID     string `json:"uid"`
	Channel string `json:"channel"`
	Auth    string `json:"auth,omitempty"`
}

// Dialer connects to one Mles server as one uid on one channel.
type Dialer struct {
	URL              string
	UID              string
	Channel          string
	ServerKey        []byte
	AllowInsecure    bool
	HandshakeTimeout time.Duration
}

// Endpoint parses and vets the server URL.
func (d *Dialer) Endpoint() (*url.URL, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: server url: %v", domain.ErrConfig, err)
	}
	switch u.Scheme {
	case "wss":
	case "ws":
		if !d.AllowInsecure {
			return nil, fmt.Errorf("%w: refusing unencrypted %s without --insecure", domain.ErrConfig, d.URL)
		}
	default:
		return nil, fmt.Errorf("%w: server url %q must use wss://", domain.ErrConfig, d.URL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: server url %q has no host", domain.ErrConfig, d.URL)
	}
	return u, nil
}

// Dial performs the WebSocket handshake and sends the join message.
func (d *Dialer) Dial(ctx context.Context) (domain.Transport, error) {
	u, err := d.Endpoint()
	if err != nil {
		return nil, err
	}
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	wd := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
		Subprotocols:     []string{Subprotocol},
	}
	ws, _, err := wd.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrConnection, u.Host, err)
	}
	ws.SetReadLimit(MaxFrameSize)

	join, err := json.Marshal(JoinMessage{
		UID:     d.UID,
		Channel: d.Channel,
		Auth:    crypto.JoinToken(d.UID, d.Channel, d.ServerKey),
	})
	if err != nil {
		ws.Close()
		return nil, err
	}
	_ = ws.SetWriteDeadline(time.Now().Add(timeout))
	if err := ws.WriteMessage(websocket.TextMessage, join); err != nil {
		ws.Close()
		return nil, fmt.Errorf("%w: join %s: %v", domain.ErrConnection, u.Host, err)
	}
	_ = ws.SetWriteDeadline(time.Time{})
	return &Conn{ws: ws}, nil
}

// Conn is an established Mles WebSocket carrying binary frames.
type Conn struct {
	ws *websocket.Conn

	wmu  sync.Mutex
	once sync.Once
}

// ReadFrame returns the next binary frame. Text frames are skipped.
func (c *Conn) ReadFrame(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.ws.SetReadDeadline(time.Now()) })
	defer stop()
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if typ == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// WriteFrame sends frame as one binary message.
func (c *Conn) WriteFrame(ctx context.Context, frame []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	deadline, _ := ctx.Deadline()
	_ = c.ws.SetWriteDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = c.ws.SetWriteDeadline(time.Now()) })
	defer stop()

	if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Close sends a normal close frame and tears the connection down.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait))
		err = c.ws.Close()
	})
	return err
}

var (
	_ domain.Dialer    = (*Dialer)(nil)
	_ domain.Transport = (*Conn)(nil)
)
