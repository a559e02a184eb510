// Package bridge forwards messages between two sides in both directions.
//
// Each side is typically a session.Service: an Mles channel or an MQTT topic
// behind its own self-healing link and its own codec. The Controller runs
// both sides and one router per direction. A router re-addresses each
// message to the destination channel and passes it through
// dedup.Cache.AdmitAndMark, which rejects anything already seen on the origin
// side and pre-records the forwarded copy on the destination side. When the
// destination server later delivers that copy back to us it is rejected
// there, so nothing loops.
//
// Sides fail independently. A side whose link gives up is logged and left
// Disconnected; messages headed for it are counted as dropped while the other
// side keeps running.
package bridge
