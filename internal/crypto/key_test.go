package crypto_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"mlesc/internal/crypto"
	"mlesc/internal/domain"
)

// fastParams keeps scrypt cheap in tests.
var fastParams = crypto.KDFParams{LogN: 10, R: 8, P: 1}

func TestDeriveSessionKey_Deterministic(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	secret := []byte("correct horse battery staple")
	k1, err := crypto.DeriveSessionKey(secret, "roomA", fastParams)
	require.NoError(err)
	k2, err := crypto.DeriveSessionKey(bytes.Clone(secret), "roomA", fastParams)
	require.NoError(err)
	require.Equal(*k1, *k2)
	require.Equal(k1.Fingerprint(), k2.Fingerprint())
}

func TestDeriveSessionKey_ChannelSeparation(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	secret := []byte("s3cret")
	a, err := crypto.DeriveSessionKey(secret, "roomA", fastParams)
	require.NoError(err)
	b, err := crypto.DeriveSessionKey(secret, "roomB", fastParams)
	require.NoError(err)
	require.NotEqual(*a, *b)
	require.NotEqual(crypto.ChannelSalt("roomA"), crypto.ChannelSalt("roomB"))
}

func TestDeriveSessionKey_SecretSeparation(t *testing.T) {
	t.Parallel()

	a, err := crypto.DeriveSessionKey([]byte("one"), "room", fastParams)
	require.NoError(t, err)
	b, err := crypto.DeriveSessionKey([]byte("two"), "room", fastParams)
	require.NoError(t, err)
	require.NotEqual(t, *a, *b)
}

func TestDeriveSessionKey_MalformedParams(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		channel string
		params  crypto.KDFParams
	}{
		{"empty channel", "", fastParams},
		{"log_n too small", "room", crypto.KDFParams{LogN: 2, R: 8, P: 1}},
		{"log_n too large", "room", crypto.KDFParams{LogN: 40, R: 8, P: 1}},
		{"zero r", "room", crypto.KDFParams{LogN: 10, R: 0, P: 1}},
		{"zero p", "room", crypto.KDFParams{LogN: 10, R: 8, P: 0}},
		{"r*p overflow", "room", crypto.KDFParams{LogN: 10, R: 1 << 15, P: 1 << 15}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := crypto.DeriveSessionKey([]byte("x"), tc.channel, tc.params)
			require.ErrorIs(t, err, domain.ErrKeyDerivation)
		})
	}
}

func TestDeriveSessionKey_EmptySecretIsNotAnError(t *testing.T) {
	t.Parallel()

	k, err := crypto.DeriveSessionKey(nil, "room", fastParams)
	require.NoError(t, err)
	require.NotEqual(t, crypto.SessionKey{}, *k)
}

func TestSessionKey_Wipe(t *testing.T) {
	t.Parallel()

	k, err := crypto.DeriveSessionKey([]byte("x"), "room", fastParams)
	require.NoError(t, err)
	k.Wipe()
	require.Equal(t, crypto.SessionKey{}, *k)
}

func TestJoinToken(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	tok := crypto.JoinToken("alice", "room", nil)
	require.Len(tok, 16)
	require.Equal(tok, crypto.JoinToken("alice", "room", nil))
	require.NotEqual(tok, crypto.JoinToken("alice", "room", []byte("server-key")))
	require.NotEqual(tok, crypto.JoinToken("bob", "room", nil))
}
