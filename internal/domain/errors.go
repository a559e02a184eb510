package domain

import "errors"

// Error taxonomy. Call sites wrap these with context; callers classify with
// errors.Is.
var (
	// ErrConfig is a configuration error, reported before any connection.
	ErrConfig = errors.New("configuration error")

	// ErrKeyDerivation is returned for malformed key derivation parameters.
	// A wrong secret never produces it.
	ErrKeyDerivation = errors.New("key derivation error")

	// ErrConnection is a link-level failure. It is only surfaced once the
	// retry policy is exhausted; before that it drives reconnects.
	ErrConnection = errors.New("connection error")

	// ErrProtocol marks a malformed or incompatible frame. The frame is
	// dropped and the link kept.
	ErrProtocol = errors.New("protocol error")

	// ErrCrypto marks a frame that failed authentication. The frame is
	// dropped and the link kept.
	ErrCrypto = errors.New("crypto error")

	// ErrDuplicate is not a failure: it tags a message filtered by the
	// deduplicator.
	ErrDuplicate = errors.New("duplicate message")

	// ErrBridgeTranslation marks a message that could not be translated to or
	// from the broker format. The message is dropped and both links kept.
	ErrBridgeTranslation = errors.New("bridge translation error")
)

// IsPerMessage reports whether err only affects a single message.
func IsPerMessage(err error) bool {
	return errors.Is(err, ErrProtocol) ||
		errors.Is(err, ErrCrypto) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrBridgeTranslation)
}
