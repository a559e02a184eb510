package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"mlesc/internal/domain"
)

var (
	// ErrQueueFull is returned by Send when the outbound queue is at capacity.
	ErrQueueFull = errors.New("link: send queue full")

	// ErrClosed is returned by Send once Run has returned.
	ErrClosed = errors.New("link: closed")

	errRunning = errors.New("link: Run called twice")
)

const (
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 30 * time.Second
	DefaultJitter      = 0.2
	DefaultQueueSize   = 256
	DefaultFlushGrace  = 2 * time.Second
	DefaultStableAfter = 5 * time.Second

	inboundBuffer = 64
)

// Config tunes reconnection and queueing. Zero values take the defaults;
// MaxRetries 0 retries forever.
//
// A connection counts as established once it delivers a frame or stays up for
// StableAfter. Until then a dropped connection is a failed attempt like a
// failed dial: it grows the backoff and spends the retry budget.
type Config struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
	MaxRetries  int
	QueueSize   int
	FlushGrace  time.Duration
	StableAfter time.Duration

	// Hello, when set, produces a frame written first on every new connection.
	Hello func() ([]byte, error)
}

func (c Config) withDefaults() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.FlushGrace < 0 {
		c.FlushGrace = 0
	}
	if c.StableAfter <= 0 {
		c.StableAfter = DefaultStableAfter
	}
	return c
}

// Link is a self-healing connection to one endpoint.
type Link struct {
	name   string
	dialer domain.Dialer
	cfg    Config
	log    zerolog.Logger

	state      atomic.Int32
	reconnects atomic.Uint64
	started    atomic.Bool

	out  chan []byte
	in   chan []byte
	done chan struct{}

	// pending is a frame whose write failed; only the Run goroutine touches it.
	pending []byte
}

// New returns a link in state Disconnected. Nothing happens until Run.
func New(name string, d domain.Dialer, cfg Config, log zerolog.Logger) *Link {
	cfg = cfg.withDefaults()
	return &Link{
		name:   name,
		dialer: d,
		cfg:    cfg,
		log:    log.With().Str("component", "link").Str("link", name).Logger(),
		out:    make(chan []byte, cfg.QueueSize),
		in:     make(chan []byte, inboundBuffer),
		done:   make(chan struct{}),
	}
}

// Name returns the label given to New.
func (l *Link) Name() string { return l.name }

// State returns the current lifecycle state.
func (l *Link) State() domain.LinkState { return domain.LinkState(l.state.Load()) }

// Reconnects counts connections established after the first one.
func (l *Link) Reconnects() uint64 { return l.reconnects.Load() }

// Frames delivers inbound frames in arrival order. It is closed when Run
// returns.
func (l *Link) Frames() <-chan []byte { return l.in }

// Send queues frame for delivery. It does not block.
func (l *Link) Send(frame []byte) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.out <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run drives the link until ctx is cancelled (returns nil) or the retry
// budget is spent (returns an error wrapping domain.ErrConnection).
func (l *Link) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return errRunning
	}
	defer func() {
		l.setState(domain.LinkDisconnected)
		close(l.done)
		close(l.in)
	}()

	var (
		failures  int
		connected bool
	)
	for {
		l.setState(domain.LinkConnecting)
		t, err := l.dialer.Dial(ctx)
		if err == nil {
			if connected {
				l.reconnects.Add(1)
			}
			connected = true
			l.setState(domain.LinkActive)
			l.log.Info().Msg("link active")

			var got atomic.Bool
			since := time.Now()
			err = l.serve(ctx, t, &got)
			if ctx.Err() != nil {
				return nil
			}
			if got.Load() || time.Since(since) >= l.cfg.StableAfter {
				failures = 0
				wait := Delay(l.cfg.BaseDelay, l.cfg.MaxDelay, l.cfg.Jitter, 0)
				l.log.Warn().Err(err).Dur("retry_in", wait).Msg("link lost")
				l.setState(domain.LinkReconnecting)
				if !sleep(ctx, wait) {
					return nil
				}
				continue
			}
			err = fmt.Errorf("dropped before established: %w", err)
		} else if ctx.Err() != nil {
			return nil
		}

		failures++
		if l.cfg.MaxRetries > 0 && failures >= l.cfg.MaxRetries {
			l.log.Error().Err(err).Int("attempts", failures).Msg("giving up")
			return fmt.Errorf("%w: %s: %d failed attempts: %v", domain.ErrConnection, l.name, failures, err)
		}
		wait := Delay(l.cfg.BaseDelay, l.cfg.MaxDelay, l.cfg.Jitter, failures-1)
		l.log.Warn().Err(err).Int("attempt", failures).Dur("retry_in", wait).Msg("connect failed")
		l.setState(domain.LinkReconnecting)
		if !sleep(ctx, wait) {
			return nil
		}
	}
}

// serve pumps frames over t until it fails or ctx ends. got is set once a
// frame has been read. t is always closed on return.
func (l *Link) serve(ctx context.Context, t domain.Transport, got *atomic.Bool) error {
	rctx, cancel := context.WithCancel(ctx)
	readErr := make(chan error, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		readErr <- l.read(rctx, t, got)
	}()
	defer func() {
		cancel()
		if err := t.Close(); err != nil {
			l.log.Debug().Err(err).Msg("close transport")
		}
		wg.Wait()
	}()

	if l.cfg.Hello != nil {
		hello, err := l.cfg.Hello()
		if err != nil {
			return fmt.Errorf("hello: %w", err)
		}
		if err := t.WriteFrame(ctx, hello); err != nil {
			if ctx.Err() != nil {
				return l.flush(t)
			}
			return fmt.Errorf("write hello: %w", err)
		}
	}

	for {
		frame := l.pending
		if frame == nil {
			select {
			case <-ctx.Done():
				return l.flush(t)
			case err := <-readErr:
				return fmt.Errorf("read: %w", err)
			case frame = <-l.out:
			}
		}
		if err := t.WriteFrame(ctx, frame); err != nil {
			l.pending = frame
			if ctx.Err() != nil {
				return l.flush(t)
			}
			return fmt.Errorf("write: %w", err)
		}
		l.pending = nil
	}
}

func (l *Link) read(ctx context.Context, t domain.Transport, got *atomic.Bool) error {
	for {
		frame, err := t.ReadFrame(ctx)
		if err != nil {
			return err
		}
		got.Store(true)
		select {
		case l.in <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// flush writes whatever is queued for at most FlushGrace.
func (l *Link) flush(t domain.Transport) error {
	if l.cfg.FlushGrace == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.FlushGrace)
	defer cancel()

	n := 0
	defer func() {
		if n > 0 {
			l.log.Debug().Int("frames", n).Msg("flushed on shutdown")
		}
	}()
	if l.pending != nil {
		if err := t.WriteFrame(ctx, l.pending); err != nil {
			return nil
		}
		l.pending = nil
		n++
	}
	for {
		select {
		case frame := <-l.out:
			if err := t.WriteFrame(ctx, frame); err != nil {
				return nil
			}
			n++
		default:
			return nil
		}
	}
}

func (l *Link) setState(s domain.LinkState) {
	if domain.LinkState(l.state.Swap(int32(s))) != s {
		l.log.Debug().Stringer("state", s).Msg("state change")
	}
}
