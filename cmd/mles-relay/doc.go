// Command mles-relay runs an in-memory Mles channel server for development
// and tests.
//
// Clients connect over plain WebSocket (use mlesc --insecure) with the
// "mles-websocket" subprotocol. The first frame of each connection is the
// JSON join message {"uid","channel","auth"}; every later binary frame is
// relayed to the other members of the same channel and kept in a short
// per-channel history that is replayed to members who join later.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - If MLES_KEY is set, joins must carry the matching auth token.
//   - Frames are opaque: the relay never holds a session key.
//   - The default listen address is 127.0.0.1:8077.
package main
