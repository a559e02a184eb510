package types

// LinkState is the lifecycle state of one transport link.
type LinkState int32

const (
	// LinkDisconnected is both the initial and the terminal state.
	LinkDisconnected LinkState = iota
	// LinkConnecting means a dial is in progress.
	LinkConnecting
	// LinkActive means the transport is up and frames flow.
	LinkActive
	// LinkReconnecting means the link is waiting out a backoff delay.
	LinkReconnecting
)

// String returns the lower-case state name used in logs and metrics.
func (s LinkState) String() string {
	switch s {
	case LinkDisconnected:
		return "disconnected"
	case LinkConnecting:
		return "connecting"
	case LinkActive:
		return "active"
	case LinkReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
