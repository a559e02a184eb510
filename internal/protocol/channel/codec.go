package channel

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/chacha20poly1305"

	"mlesc/internal/crypto"
	"mlesc/internal/domain"
)

const (
	nonceSize  = chacha20poly1305.NonceSizeX
	prefixSize = nonceSize - 8
)

var (
	// ErrNonceExhausted is returned once the 64-bit counter would wrap. The
	// key must not be used for further encryption.
	ErrNonceExhausted = errors.New("channel: nonce counter exhausted")

	// ErrClosed is returned after Close wiped the key.
	ErrClosed = errors.New("channel: codec closed")
)

// Codec encodes and decodes frames for one channel under one session key.
type Codec struct {
	channel string
	key     *crypto.SessionKey
	prefix  [prefixSize]byte

	mu      sync.Mutex
	aead    cipher.AEAD
	counter uint64
}

// NewCodec takes ownership of key; Close wipes it.
func NewCodec(key *crypto.SessionKey, channel string) (*Codec, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil session key", domain.ErrConfig)
	}
	if channel == "" {
		return nil, fmt.Errorf("%w: empty channel", domain.ErrConfig)
	}
	aead, err := chacha20poly1305.NewX(key.Slice())
	if err != nil {
		return nil, err
	}
	c := &Codec{channel: channel, key: key, aead: aead}
	if _, err := rand.Read(c.prefix[:]); err != nil {
		return nil, err
	}
	return c, nil
}

// Channel returns the channel this codec is bound to.
func (c *Codec) Channel() string { return c.channel }

// Encode seals m into a wire frame. An empty m.Channel is filled with the
// codec's channel; any other mismatch is refused.
func (c *Codec) Encode(m domain.Message) ([]byte, error) {
	if m.Channel == "" {
		m.Channel = c.channel
	}
	if m.Channel != c.channel {
		return nil, fmt.Errorf("%w: message for channel %q on codec for %q", domain.ErrProtocol, m.Channel, c.channel)
	}
	if m.UID == "" {
		return nil, fmt.Errorf("%w: empty uid", domain.ErrProtocol)
	}
	if !m.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrProtocol, m.Kind)
	}

	aead, nonce, err := c.next()
	if err != nil {
		return nil, err
	}
	env := domain.Envelope{
		Version: ProtocolVersion,
		UID:     m.UID,
		Channel: m.Channel,
		Time:    domain.NormalizeTime(m.Time).UnixMilli(),
		Kind:    m.Kind,
		Nonce:   nonce,
	}
	env.Ciphertext = aead.Seal(nil, nonce, []byte(m.Body), associatedData(env))
	return MarshalEnvelope(env)
}

// Decode opens a wire frame. Errors are per-frame and leave no state behind.
func (c *Codec) Decode(frame []byte) (domain.Message, error) {
	env, err := UnmarshalEnvelope(frame)
	if err != nil {
		return domain.Message{}, err
	}
	if err := c.check(env); err != nil {
		return domain.Message{}, err
	}

	c.mu.Lock()
	aead := c.aead
	c.mu.Unlock()
	if aead == nil {
		return domain.Message{}, ErrClosed
	}

	body, err := aead.Open(nil, env.Nonce, env.Ciphertext, associatedData(env))
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: frame from %q failed authentication", domain.ErrCrypto, env.UID)
	}
	if !utf8.Valid(body) {
		return domain.Message{}, fmt.Errorf("%w: body is not valid UTF-8", domain.ErrProtocol)
	}
	return domain.Message{
		UID:     env.UID,
		Channel: env.Channel,
		Time:    time.UnixMilli(env.Time).UTC(),
		Kind:    env.Kind,
		Body:    string(body),
	}, nil
}

// Close wipes the session key. Further Encode/Decode calls fail.
func (c *Codec) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aead = nil
	c.key.Wipe()
}

// next reserves a fresh nonce under the lock.
func (c *Codec) next() (cipher.AEAD, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.aead == nil {
		return nil, nil, ErrClosed
	}
	if c.counter == math.MaxUint64 {
		return nil, nil, ErrNonceExhausted
	}
	nonce := make([]byte, nonceSize)
	copy(nonce, c.prefix[:])
	binary.BigEndian.PutUint64(nonce[prefixSize:], c.counter)
	c.counter++
	return c.aead, nonce, nil
}

func (c *Codec) check(env domain.Envelope) error {
	switch {
	case env.Version != ProtocolVersion:
		return fmt.Errorf("%w: unsupported protocol version %d", domain.ErrProtocol, env.Version)
	case env.Channel != c.channel:
		return fmt.Errorf("%w: frame for channel %q on codec for %q", domain.ErrProtocol, env.Channel, c.channel)
	case env.UID == "":
		return fmt.Errorf("%w: missing uid", domain.ErrProtocol)
	case !env.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", domain.ErrProtocol, env.Kind)
	case len(env.Nonce) != nonceSize:
		return fmt.Errorf("%w: nonce length %d", domain.ErrProtocol, len(env.Nonce))
	case len(env.Ciphertext) < chacha20poly1305.Overhead:
		return fmt.Errorf("%w: truncated ciphertext", domain.ErrProtocol)
	}
	return nil
}
