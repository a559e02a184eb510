package types

import "time"

// Message is a decoded application payload.
//
// Time is carried with millisecond precision in UTC; constructors and decoders
// normalise it so that fingerprints agree across re-encodings.
type Message struct {
	UID     string    `json:"uid"`
	Channel string    `json:"channel"`
	Time    time.Time `json:"time"`
	Kind    Kind      `json:"kind"`
	Body    string    `json:"body,omitempty"`
}

// NormalizeTime truncates t to the precision carried on the wire.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// NewText builds a text message stamped at now.
func NewText(uid, channel, body string, now time.Time) Message {
	return Message{UID: uid, Channel: channel, Time: NormalizeTime(now), Kind: KindText, Body: body}
}

// NewJoin builds a join announcement stamped at now.
func NewJoin(uid, channel string, now time.Time) Message {
	return Message{UID: uid, Channel: channel, Time: NormalizeTime(now), Kind: KindJoin}
}

// WithChannel returns a copy of m addressed to channel.
func (m Message) WithChannel(channel string) Message {
	m.Channel = channel
	return m
}

// Envelope is the unit exchanged over the channel transport.
//
// UID, Channel, Time and Kind travel in the clear and are bound into the AEAD
// associated data; Nonce and Ciphertext (which includes the tag) carry the
// encrypted body.
type Envelope struct {
	Version    int    `cbor:"v"`
	UID        string `cbor:"uid"`
	Channel    string `cbor:"channel"`
	Time       int64  `cbor:"time"`
	Kind       Kind   `cbor:"kind"`
	Nonce      []byte `cbor:"nonce"`
	Ciphertext []byte `cbor:"ct"`
}
