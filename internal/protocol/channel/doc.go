// Package channel implements the secure channel codec: it turns plaintext
// messages into authenticated, encrypted wire frames and back.
//
// Frames are CBOR maps {v, uid, channel, time, kind, nonce, ct}. The body is
// sealed with XChaCha20-Poly1305 under the channel's session key; the clear
// header fields are bound into the associated data, so a frame cannot be
// replayed into another channel or re-attributed to another user.
//
// Nonces are never random per message. Each Codec draws a 16-byte prefix once
// and appends a 64-bit big-endian counter that advances on every Encode. Two
// peers that share a key have different prefixes; one peer never repeats a
// counter, across reconnects included, because the Codec outlives its
// transport.
//
// Decode failures are per-frame: malformed or incompatible frames yield
// domain.ErrProtocol, authentication failures domain.ErrCrypto. Neither leaves
// any state behind, so the next frame decodes normally.
//
// Concurrency: a Codec is safe for concurrent use.
package channel
