package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"mlesc/internal/domain"
	"mlesc/internal/link"
)

// FrameCodec converts between messages and wire frames for one channel.
type FrameCodec interface {
	Encode(m domain.Message) ([]byte, error)
	Decode(frame []byte) (domain.Message, error)
}

var errRunning = errors.New("session: Run called twice")

// Option customises a Service.
type Option func(*options)

type options struct {
	announceUID string
	now         func() time.Time
	buffer      int
}

// Announce makes every new connection start with a join message from uid.
func Announce(uid string) Option {
	return func(o *options) { o.announceUID = uid }
}

// WithClock overrides the clock used to stamp join messages.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithBuffer sets the capacity of the Messages channel.
func WithBuffer(n int) Option {
	return func(o *options) { o.buffer = n }
}

// Service is one channel over one self-healing link.
type Service struct {
	name    string
	channel string
	link    *link.Link
	codec   FrameCodec
	log     zerolog.Logger

	msgs           chan domain.Message
	started        atomic.Bool
	decodeFailures atomic.Uint64
}

// New builds a Service. The link is created here so that an Announce hello can
// be wired into its config.
func New(
	name, channel string,
	d domain.Dialer,
	codec FrameCodec,
	cfg link.Config,
	log zerolog.Logger,
	opts ...Option,
) *Service {
	o := options{now: time.Now, buffer: 64}
	for _, opt := range opts {
		opt(&o)
	}
	if o.announceUID != "" {
		uid, now := o.announceUID, o.now
		cfg.Hello = func() ([]byte, error) {
			return codec.Encode(domain.NewJoin(uid, channel, now()))
		}
	}
	return &Service{
		name:    name,
		channel: channel,
		link:    link.New(name, d, cfg, log),
		codec:   codec,
		log:     log.With().Str("component", "session").Str("side", name).Logger(),
		msgs:    make(chan domain.Message, o.buffer),
	}
}

func (s *Service) Name() string { return s.name }
func (s *Service) Channel() string { return s.channel }
func (s *Service) State() domain.LinkState { return s.link.State() }
func (s *Service) Reconnects() uint64 { return s.link.Reconnects() }
func (s *Service) Messages() <-chan domain.Message { return s.msgs }

// DecodeFailures counts frames dropped because they could not be decoded.
func (s *Service) DecodeFailures() uint64 { return s.decodeFailures.Load() }

// Send encodes m and queues it. Encoding errors are per message.
func (s *Service) Send(m domain.Message) error {
	frame, err := s.codec.Encode(m)
	if err != nil {
		return err
	}
	return s.link.Send(frame)
}

// Run drives the link and the decoder until ctx ends or the link gives up.
// Messages is closed on return.
func (s *Service) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errRunning
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(s.msgs)
		s.decode(ctx)
	}()
	err := s.link.Run(ctx)
	wg.Wait()
	return err
}

func (s *Service) decode(ctx context.Context) {
	for frame := range s.link.Frames() {
		m, err := s.codec.Decode(frame)
		if err != nil {
			s.decodeFailures.Add(1)
			s.log.Warn().Err(err).Int("bytes", len(frame)).Msg("dropping undecodable frame")
			continue
		}
		s.log.Trace().Str("uid", m.UID).Stringer("kind", m.Kind).Int("len", len(m.Body)).Msg("received")
		select {
		case s.msgs <- m:
		case <-ctx.Done():
			return
		}
	}
}
