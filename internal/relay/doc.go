// Package relay speaks the Mles WebSocket protocol.
//
// Dialer and Conn are the client side: Dial opens a WebSocket with the
// "mles-websocket" subprotocol, sends the plaintext join message
// {"uid","channel","auth"} as a text frame and returns a Conn that carries
// opaque binary frames. Plain ws:// endpoints are refused unless
// AllowInsecure is set.
//
// Hub is a small in-memory channel server used for local runs and tests. It
// never looks inside binary frames: it fans each one out to the other members
// of the sender's channel and replays the most recent frames to members that
// join later. That replay is exactly the kind of redelivery clients must
// deduplicate.
package relay
