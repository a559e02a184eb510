// Package crypto exposes the key material primitives used by mlesc.
//
// Contents
//
//   - Session key derivation from a shared secret and a channel name
//     (DeriveSessionKey): scrypt with a channel-bound salt, then a keyed
//     BLAKE2b-256 to produce the exact XChaCha20-Poly1305 key length
//   - Mles join authenticator (JoinToken)
//   - Short fingerprints for out-of-band key comparison (Fingerprint)
//
// # Notes
//
// No key material is ever exchanged: both ends of a channel derive the same
// SessionKey from the same inputs. A wrong secret is not detectable here; it
// shows up later as frames that fail authentication. Callers own the secret
// bytes and should wipe them once the key is derived.
package crypto
