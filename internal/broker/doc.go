// Package broker carries channel messages over an MQTT topic.
//
// Messages on the broker side are plaintext; anything published to the topic
// is readable by every subscriber of the broker. Two payload formats exist:
//
//	line  text: "2025-06-01T12:00:00.000Z bob:hello"
//	      join: {"uid":"bob","time":"2025-06-01T12:00:00.000Z"}
//	json  {"uid":"bob","channel":"room","time":"...","kind":"text","body":"hello"}
//
// The line format matches what other Mles clients publish. A uid containing
// whitespace or ':' cannot be written in it and is refused with
// domain.ErrBridgeTranslation. The topic name is the channel name, and on the
// way in the channel is taken from the topic rather than from the payload.
//
// Dialer connects with eclipse paho and implements domain.Dialer, so an MQTT
// topic gets the same reconnect handling as an Mles server link. Paho's own
// reconnect logic is switched off.
package broker
