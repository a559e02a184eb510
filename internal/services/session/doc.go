// Package session joins a link to a frame codec.
//
// A Service owns one link.Link and one FrameCodec. Inbound frames are decoded
// in arrival order and handed out on Messages; frames that fail to decode are
// counted and dropped without disturbing the link. Send encodes a message and
// queues it on the link. The same Service type backs an Mles channel (with the
// secure channel codec) and an MQTT topic (with the broker adapter).
package session
