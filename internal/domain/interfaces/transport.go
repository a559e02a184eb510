package interfaces

import "context"

// Transport moves opaque frames over one established connection.
//
// ReadFrame blocks until a frame arrives, the connection fails or ctx is done.
// Implementations must allow one concurrent reader and one concurrent writer.
type Transport interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, frame []byte) error
	Close() error
}

// Dialer establishes a fresh Transport. Each call is one connection attempt.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}
