package channel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mlesc/internal/crypto"
	"mlesc/internal/domain"
	"mlesc/internal/protocol/channel"
)

var fastParams = crypto.KDFParams{LogN: 10, R: 8, P: 1}

// newCodec derives a key for (secret, ch) and wraps it in a codec.
func newCodec(t *testing.T, secret, ch string) *channel.Codec {
	t.Helper()
	key, err := crypto.DeriveSessionKey([]byte(secret), ch, fastParams)
	require.NoError(t, err)
	c, err := channel.NewCodec(key, ch)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

var testTime = time.Date(2025, 3, 14, 15, 9, 26, 535_000_000, time.UTC)

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	enc := newCodec(t, "secret", "room")
	dec := newCodec(t, "secret", "room")

	msgs := []domain.Message{
		domain.NewText("alice", "room", "hi", testTime),
		domain.NewText("bob", "room", "", testTime),
		domain.NewText("carol", "room", "multi\nline: with colons ✓", testTime),
		domain.NewJoin("dave", "room", testTime),
	}
	for _, m := range msgs {
		frame, err := enc.Encode(m)
		require.NoError(t, err)
		got, err := dec.Decode(frame)
		require.NoError(t, err)
		require.Equal(t, m, got)
	}
}

func TestCodec_FillsEmptyChannel(t *testing.T) {
	t.Parallel()

	c := newCodec(t, "secret", "room")
	frame, err := c.Encode(domain.Message{UID: "alice", Kind: domain.KindText, Body: "x", Time: testTime})
	require.NoError(t, err)
	got, err := c.Decode(frame)
	require.NoError(t, err)
	require.Equal(t, "room", got.Channel)
}

func TestCodec_NonceUniqueness(t *testing.T) {
	t.Parallel()

	// Two codecs under the same key model two peers, or one peer before and
	// after a restart.
	a := newCodec(t, "secret", "room")
	b := newCodec(t, "secret", "room")

	seen := make(map[string]struct{})
	m := domain.NewText("alice", "room", "same body every time", testTime)
	for _, c := range []*channel.Codec{a, b} {
		for i := 0; i < 2000; i++ {
			frame, err := c.Encode(m)
			require.NoError(t, err)
			env, err := channel.UnmarshalEnvelope(frame)
			require.NoError(t, err)
			_, dup := seen[string(env.Nonce)]
			require.False(t, dup, "nonce reused at encode %d", i)
			seen[string(env.Nonce)] = struct{}{}
		}
	}
}

func TestCodec_WrongKey(t *testing.T) {
	t.Parallel()

	enc := newCodec(t, "secret", "room")
	dec := newCodec(t, "other secret", "room")

	frame, err := enc.Encode(domain.NewText("alice", "room", "hi", testTime))
	require.NoError(t, err)
	_, err = dec.Decode(frame)
	require.ErrorIs(t, err, domain.ErrCrypto)
}

func TestCodec_HeaderTamperingFailsAuthentication(t *testing.T) {
	t.Parallel()

	c := newCodec(t, "secret", "room")
	frame, err := c.Encode(domain.NewText("alice", "room", "hi", testTime))
	require.NoError(t, err)

	tamper := map[string]func(*domain.Envelope){
		"uid":  func(e *domain.Envelope) { e.UID = "mallory" },
		"time": func(e *domain.Envelope) { e.Time++ },
		"kind": func(e *domain.Envelope) { e.Kind = domain.KindJoin },
		"body": func(e *domain.Envelope) { e.Ciphertext[0] ^= 1 },
		"tag":  func(e *domain.Envelope) { e.Ciphertext[len(e.Ciphertext)-1] ^= 1 },
	}
	for name, mut := range tamper {
		t.Run(name, func(t *testing.T) {
			env, err := channel.UnmarshalEnvelope(frame)
			require.NoError(t, err)
			mut(&env)
			bad, err := channel.MarshalEnvelope(env)
			require.NoError(t, err)
			_, err = c.Decode(bad)
			require.ErrorIs(t, err, domain.ErrCrypto)
		})
	}
}

func TestCodec_MalformedFrames(t *testing.T) {
	t.Parallel()

	c := newCodec(t, "secret", "room")
	good, err := c.Encode(domain.NewText("alice", "room", "hi", testTime))
	require.NoError(t, err)

	reencode := func(mut func(*domain.Envelope)) []byte {
		env, err := channel.UnmarshalEnvelope(good)
		require.NoError(t, err)
		mut(&env)
		b, err := channel.MarshalEnvelope(env)
		require.NoError(t, err)
		return b
	}

	cases := map[string][]byte{
		"empty":          nil,
		"garbage":        []byte("definitely not cbor"),
		"truncated":      good[:len(good)/2],
		"trailing data":  append(append([]byte(nil), good...), 0x00),
		"future version": reencode(func(e *domain.Envelope) { e.Version = channel.ProtocolVersion + 1 }),
		"other channel":  reencode(func(e *domain.Envelope) { e.Channel = "elsewhere" }),
		"short nonce":    reencode(func(e *domain.Envelope) { e.Nonce = e.Nonce[:12] }),
		"no uid":         reencode(func(e *domain.Envelope) { e.UID = "" }),
		"unknown kind":   reencode(func(e *domain.Envelope) { e.Kind = "presence" }),
		"short ct":       reencode(func(e *domain.Envelope) { e.Ciphertext = e.Ciphertext[:4] }),
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decode(frame)
			require.ErrorIs(t, err, domain.ErrProtocol)
		})
	}

	// A bad frame leaves the codec usable.
	_, err = c.Decode(good)
	require.NoError(t, err)
}

func TestCodec_CrossChannelReplayRejected(t *testing.T) {
	t.Parallel()

	// Same secret, different channels: keys differ and the header check trips
	// before decryption is even attempted.
	a := newCodec(t, "secret", "roomA")
	b := newCodec(t, "secret", "roomB")

	frame, err := a.Encode(domain.NewText("alice", "roomA", "hi", testTime))
	require.NoError(t, err)
	_, err = b.Decode(frame)
	require.ErrorIs(t, err, domain.ErrProtocol)
}

func TestCodec_EncodeRejectsForeignChannel(t *testing.T) {
	t.Parallel()

	c := newCodec(t, "secret", "room")
	_, err := c.Encode(domain.NewText("alice", "other", "hi", testTime))
	require.ErrorIs(t, err, domain.ErrProtocol)
}

func TestCodec_Close(t *testing.T) {
	t.Parallel()

	key, err := crypto.DeriveSessionKey([]byte("secret"), "room", fastParams)
	require.NoError(t, err)
	c, err := channel.NewCodec(key, "room")
	require.NoError(t, err)

	frame, err := c.Encode(domain.NewText("alice", "room", "hi", testTime))
	require.NoError(t, err)

	c.Close()
	require.Equal(t, crypto.SessionKey{}, *key)
	_, err = c.Encode(domain.NewText("alice", "room", "hi", testTime))
	require.ErrorIs(t, err, channel.ErrClosed)
	_, err = c.Decode(frame)
	require.ErrorIs(t, err, channel.ErrClosed)
}
