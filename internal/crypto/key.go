package crypto

import (
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"mlesc/internal/domain"
	"mlesc/internal/util/memzero"
)

const (
	KeyBytes  = chacha20poly1305.KeySize
	SaltBytes = 16

	// stretchBytes is the scrypt output length fed to the keyed hash.
	stretchBytes = 64

	minLogN = 10
	maxLogN = 24
)

// keyLabel domain-separates session keys from any other use of the stretched secret.
var keyLabel = []byte("mles-session-key/v1")

// KDFParams tunes the scrypt stage.
type KDFParams struct {
	LogN uint8 `yaml:"log_n"`
	R    int   `yaml:"r"`
	P    int   `yaml:"p"`
}

// DefaultKDFParams returns N=2^17, r=8, p=1.
func DefaultKDFParams() KDFParams { return KDFParams{LogN: 17, R: 8, P: 1} }

// Validate reports malformed parameters as domain.ErrKeyDerivation.
func (p KDFParams) Validate() error {
	if p.LogN < minLogN || p.LogN > maxLogN {
		return fmt.Errorf("%w: log_n %d outside [%d, %d]", domain.ErrKeyDerivation, p.LogN, minLogN, maxLogN)
	}
	if p.R < 1 || p.P < 1 {
		return fmt.Errorf("%w: r and p must be positive", domain.ErrKeyDerivation)
	}
	if uint64(p.R)*uint64(p.P) >= 1<<30 {
		return fmt.Errorf("%w: r*p too large", domain.ErrKeyDerivation)
	}
	return nil
}

// SessionKey is the symmetric key for one channel. It is immutable after
// derivation until Wipe.
type SessionKey [KeyBytes]byte

// Slice returns the key bytes without copying.
func (k *SessionKey) Slice() []byte { return k[:] }

// Wipe zeroes the key.
func (k *SessionKey) Wipe() { memzero.Zero(k[:]) }

// Fingerprint returns a short digest of the key for out-of-band comparison.
func (k *SessionKey) Fingerprint() string { return Fingerprint(k[:]) }

// ChannelSalt returns the scrypt salt for channel: BLAKE2b-512(channel)[:16].
func ChannelSalt(channel string) []byte {
	sum := blake2b.Sum512([]byte(channel))
	salt := make([]byte, SaltBytes)
	copy(salt, sum[:SaltBytes])
	return salt
}

// DeriveSessionKey turns a shared secret into the session key for channel.
//
// The scrypt stage stretches the secret with a channel-bound salt; the keyed
// BLAKE2b stage compresses the stretched output to exactly KeyBytes. Two peers
// with the same secret and channel always derive the same key.
func DeriveSessionKey(secret []byte, channel string, p KDFParams) (*SessionKey, error) {
	if channel == "" {
		return nil, fmt.Errorf("%w: empty channel", domain.ErrKeyDerivation)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	stretched, err := scrypt.Key(secret, ChannelSalt(channel), 1<<p.LogN, p.R, p.P, stretchBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyDerivation, err)
	}
	defer memzero.Zero(stretched)

	h, err := blake2b.New256(stretched)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyDerivation, err)
	}
	h.Write(keyLabel)
	h.Write([]byte{0})
	h.Write([]byte(channel))

	var key SessionKey
	sum := h.Sum(nil)
	copy(key[:], sum)
	memzero.Zero(sum)
	return &key, nil
}
