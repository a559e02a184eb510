// Package memtransport provides in-memory domain.Transport and domain.Dialer
// fakes for tests.
package memtransport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"mlesc/internal/domain"
)

var (
	// ErrDropped is returned by a Transport after Drop or Close.
	ErrDropped = errors.New("memtransport: connection dropped")

	// ErrRefused is returned by Dial while failures are scheduled.
	ErrRefused = errors.New("memtransport: connection refused")
)

// Transport is one fake connection. Frames passed to Deliver are returned by
// ReadFrame; frames passed to WriteFrame appear on Written.
type Transport struct {
	in      chan []byte
	written chan []byte

	once   sync.Once
	closed chan struct{}
}

// New returns an open Transport.
func New() *Transport {
	return &Transport{
		in:      make(chan []byte, 256),
		written: make(chan []byte, 256),
		closed:  make(chan struct{}),
	}
}

// Deliver makes frame readable. It reports false if the transport is gone.
func (t *Transport) Deliver(frame []byte) bool {
	select {
	case <-t.closed:
		return false
	case t.in <- frame:
		return true
	}
}

// Written yields every frame written, in order.
func (t *Transport) Written() <-chan []byte { return t.written }

// Drop simulates the remote end going away.
func (t *Transport) Drop() { t.once.Do(func() { close(t.closed) }) }

// Closed reports whether Drop or Close was called.
func (t *Transport) Closed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *Transport) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.closed:
		return nil, ErrDropped
	case f := <-t.in:
		return f, nil
	}
}

func (t *Transport) WriteFrame(ctx context.Context, frame []byte) error {
	select {
	case <-t.closed:
		return ErrDropped
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.closed:
		return ErrDropped
	case t.written <- append([]byte(nil), frame...):
		return nil
	}
}

func (t *Transport) Close() error {
	t.Drop()
	return nil
}

// Dialer hands out a new Transport per successful Dial.
type Dialer struct {
	mu   sync.Mutex
	fail int
	drop bool

	attempts atomic.Int64
	conns    chan *Transport
}

// NewDialer returns a Dialer that always succeeds until told otherwise.
func NewDialer() *Dialer {
	return &Dialer{conns: make(chan *Transport, 64)}
}

// FailNext makes the next n dials fail with ErrRefused.
func (d *Dialer) FailNext(n int) {
	d.mu.Lock()
	d.fail = n
	d.mu.Unlock()
}

// DropOnDial makes every later Dial succeed with a Transport that is already
// dropped, like a server that accepts and then hangs up.
func (d *Dialer) DropOnDial(on bool) {
	d.mu.Lock()
	d.drop = on
	d.mu.Unlock()
}

// Conns yields every Transport handed out, in order.
func (d *Dialer) Conns() <-chan *Transport { return d.conns }

// Attempts counts Dial calls, failed ones included.
func (d *Dialer) Attempts() int { return int(d.attempts.Load()) }

func (d *Dialer) Dial(ctx context.Context) (domain.Transport, error) {
	d.attempts.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	if d.fail > 0 {
		d.fail--
		d.mu.Unlock()
		return nil, ErrRefused
	}
	drop := d.drop
	d.mu.Unlock()

	t := New()
	if drop {
		t.Drop()
	}
	select {
	case d.conns <- t:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return t, nil
}

var (
	_ domain.Transport = (*Transport)(nil)
	_ domain.Dialer    = (*Dialer)(nil)
)
